package document

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// WordsPerPage is used to estimate a page count.
const WordsPerPage = 300

// ErrNotFound is returned when the document does not exist.
var ErrNotFound = errors.New("document not found")

// Content is the readable text of a document.
type Content struct {
	Title      string   `json:"title,omitempty"`
	Paragraphs []string `json:"paragraphs"`
	WordCount  int      `json:"word_count"`
	PageCount  int      `json:"page_count"`
}

// Extract reads path and splits it into paragraphs. Markdown files are
// parsed; anything else is split on blank lines.
func Extract(path string) (Content, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Content{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return Content{}, fmt.Errorf("unable to read document: %w", err)
	}

	if IsMarkdownFile(path) {
		return ParseMarkdown(b), nil
	}
	return ParseText(b), nil
}

// IsMarkdownFile reports whether path has a markdown extension.
func IsMarkdownFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".mdown", ".mkdn", ".mkd", ".markdown":
		return true
	default:
		return false
	}
}

// ParseText splits plain text on blank lines.
func ParseText(b []byte) Content {
	normalized := strings.ReplaceAll(string(b), "\r\n", "\n")

	var paragraphs []string
	for _, p := range blankLines.Split(normalized, -1) {
		if p = collapse(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return newContent("", paragraphs)
}

var blankLines = regexp.MustCompile(`\n[ \t]*\n`)

// ParseMarkdown extracts headings, paragraphs, list items and quotes as
// separate paragraphs. Code, HTML and front matter are not read aloud.
func ParseMarkdown(b []byte) Content {
	b = RemoveFrontmatter(b)

	reader := text.NewReader(b)
	root := goldmark.New().Parser().Parse(reader)

	w := &walker{source: reader.Source()}
	w.walkBlocks(root)
	return newContent(w.title, w.paragraphs)
}

func newContent(title string, paragraphs []string) Content {
	words := 0
	for _, p := range paragraphs {
		words += len(strings.Fields(p))
	}

	pages := 0
	if len(paragraphs) > 0 {
		pages = max(1, (words+WordsPerPage-1)/WordsPerPage)
	}

	return Content{
		Title:      title,
		Paragraphs: paragraphs,
		WordCount:  words,
		PageCount:  pages,
	}
}

type walker struct {
	source     []byte
	title      string
	paragraphs []string
}

func (w *walker) walkBlocks(node ast.Node) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
			continue

		case *ast.Heading:
			s := w.inline(n)
			if w.title == "" && n.Level == 1 {
				w.title = s
			}
			w.add(s)

		case *ast.Paragraph, *ast.TextBlock:
			w.add(w.inline(n))

		default:
			// lists, list items and blockquotes contain blocks
			w.walkBlocks(n)
		}
	}
}

func (w *walker) add(s string) {
	if s = collapse(s); s != "" {
		w.paragraphs = append(w.paragraphs, s)
	}
}

// inline flattens the inline children of a block to plain text.
func (w *walker) inline(node ast.Node) string {
	var buf strings.Builder
	w.writeInline(node, &buf)
	return buf.String()
}

func (w *walker) writeInline(node ast.Node, buf *strings.Builder) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Text:
			buf.Write(n.Segment.Value(w.source))
			if n.SoftLineBreak() || n.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(n.Value)
		case *ast.CodeSpan:
			for t := n.FirstChild(); t != nil; t = t.NextSibling() {
				if s, ok := t.(*ast.Text); ok {
					buf.Write(s.Segment.Value(w.source))
				}
			}
		case *ast.AutoLink:
			buf.Write(n.Label(w.source))
		case *ast.RawHTML:
			continue
		case *ast.Image:
			// alt text only
			w.writeInline(n, buf)
		default:
			// emphasis, links
			w.writeInline(n, buf)
		}
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RemoveFrontmatter strips a leading YAML front matter block.
func RemoveFrontmatter(content []byte) []byte {
	if frontmatterBoundaries := detectFrontmatter(content); frontmatterBoundaries[0] == 0 {
		return content[frontmatterBoundaries[1]:]
	}
	return content
}

var yamlPattern = regexp.MustCompile(`(?m)^---\r?\n(\s*\r?\n)?`)

func detectFrontmatter(c []byte) []int {
	if matches := yamlPattern.FindAllIndex(c, 2); len(matches) > 1 {
		if bytes.Equal(c[matches[0][0]:matches[0][1]], []byte("---\n")) ||
			bytes.Equal(c[matches[0][0]:matches[0][1]], []byte("---\r\n")) {
			return []int{matches[0][0], matches[1][1]}
		}
	}
	return []int{-1, -1}
}
