package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/dgnsrekt/readaloud/internal/playback"
)

const (
	ellipsis      = "…"
	headerHeight  = 2
	statusHeight  = 1
	sideMargin    = 2
	progressWidth = 20
	minBarWidth   = 60
)

func (m *model) View() string {
	switch m.state {
	case stateLoading:
		return "\n" + indent(m.spinner.View()+" Loading document...", sideMargin)
	case stateError:
		return "\n" + indent(errorView(m.err), sideMargin)
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	m.statusBarView(&b)
	if m.help.ShowAll {
		b.WriteString("\n")
		b.WriteString(indent(m.help.View(m.keys), sideMargin))
	}
	return b.String()
}

func errorView(err error) string {
	return errorTitleStyle("ERROR") + "\n\n" + err.Error() + "\n\n" +
		paragraphStyle("Press q to exit.")
}

func (m *model) headerView() string {
	title := m.doc.Title
	if title == "" {
		title = m.cfg.Path
	}
	if title == "" {
		title = "Clipboard"
	}

	info := fmt.Sprintf("%d words · %d pages", m.doc.WordCount, m.doc.PageCount)
	logo := logoView()
	width := m.width - ansi.PrintableRuneWidth(logo) - runewidth.StringWidth(info) - 2
	if width <= 0 {
		return logo
	}

	title = runewidth.Truncate(title, width, ellipsis)
	gap := max(1, width-runewidth.StringWidth(title)+1)
	return logo + " " + title + strings.Repeat(" ", gap) + headerStyle(info)
}

func (m *model) setSize(w, h int) {
	m.width = w
	m.height = h

	m.help.Width = w
	vh := h - headerHeight - statusHeight - 1
	if m.help.ShowAll {
		vh -= lipgloss.Height(m.help.View(m.keys)) + 1
	}
	m.viewport.Width = w
	m.viewport.Height = max(0, vh)
	m.progress.Width = progressWidth

	m.updateContent()
}

// updateContent re-renders the paragraphs and keeps the current one in
// view.
func (m *model) updateContent() {
	if m.state != stateReady {
		return
	}
	content, start, end := renderParagraphs(
		m.doc.Paragraphs,
		m.current,
		m.spokenWord(),
		max(10, m.viewport.Width-sideMargin*2),
	)
	m.viewport.SetContent(content)

	top := m.viewport.YOffset
	bottom := top + m.viewport.Height
	if start < top || (end > bottom && end-start <= m.viewport.Height) || start >= bottom {
		m.viewport.SetYOffset(start)
	}
}

// renderParagraphs wraps paragraphs to width with the current paragraph
// and spoken word highlighted. It returns the content and the line range
// of the current paragraph.
func renderParagraphs(paragraphs []string, current, word, width int) (string, int, int) {
	var (
		b     strings.Builder
		line  int
		start int
		end   int
	)

	for i, p := range paragraphs {
		var text string
		if i == current {
			text = highlightWord(p, word)
		} else {
			text = paragraphStyle(p)
		}
		wrapped := indent(wordwrap.String(text, width), sideMargin)
		n := strings.Count(wrapped, "\n") + 1

		if i > 0 {
			b.WriteString("\n\n")
			line++
		}
		if i == current {
			start, end = line, line+n
		}
		b.WriteString(wrapped)
		line += n
	}

	return b.String(), start, end
}

// highlightWord styles the words of p with the word at index word marked.
func highlightWord(p string, word int) string {
	words := strings.Fields(p)
	for i, w := range words {
		if i == word {
			words[i] = spokenWordStyle(w)
		} else {
			words[i] = currentParagraphStyle(w)
		}
	}
	return strings.Join(words, " ")
}

func (m *model) statusBarView(b *strings.Builder) {
	// Icon
	icon := statusBarNoteStyle(" " + m.playIcon() + " ")

	// Position
	position := statusBarNoteStyle(fmt.Sprintf(" %s/%s ",
		formatMS(m.audio.PositionMS), formatMS(m.audio.DurationMS)))

	// Speed and volume
	settings := statusBarHelpStyle(fmt.Sprintf(" %.1fx  vol %3d%% ",
		m.speed, int(m.volume*100+0.5)))

	// Progress
	var bar string
	if m.width >= minBarWidth {
		bar = statusBarNoteStyle(" ") + m.progress.ViewAs(progressPercent(m.audio)) + statusBarNoteStyle(" ")
	}

	// Note or status message
	var note string
	switch {
	case m.statusMessage != "" && m.statusIsError:
		note = statusBarErrorStyle(" " + m.statusMessage + " ")
	case m.statusMessage != "":
		note = statusBarMessageStyle(" " + m.statusMessage + " ")
	default:
		n := fmt.Sprintf(" ¶ %d/%d ", m.current+1, len(m.doc.Paragraphs))
		if m.autoAdvance {
			n += "· auto "
		}
		note = statusBarNoteStyle(n)
	}

	used := ansi.PrintableRuneWidth(icon) +
		ansi.PrintableRuneWidth(position) +
		ansi.PrintableRuneWidth(settings) +
		ansi.PrintableRuneWidth(bar)
	noteWidth := max(0, m.width-used)
	note = truncate.StringWithTail(note, uint(noteWidth), ellipsis)

	// Empty space
	padding := max(0, noteWidth-ansi.PrintableRuneWidth(note))
	emptySpace := statusBarInfoStyle(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s%s%s",
		icon,
		note,
		emptySpace,
		bar,
		position,
		settings,
	)
}

func (m *model) playIcon() string {
	switch {
	case m.synthesizing:
		return m.spinner.View()
	case m.audio.IsPlaying:
		return "▶"
	case m.paused:
		return "‖"
	default:
		return "■"
	}
}

func progressPercent(s playback.AudioState) float64 {
	if s.DurationMS == 0 {
		return 0
	}
	return min(1, float64(s.PositionMS)/float64(s.DurationMS))
}

// formatMS renders milliseconds as m:ss.
func formatMS(ms uint64) string {
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
