package tts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// VoiceInfo describes an installed piper voice.
type VoiceInfo struct {
	Name      string `json:"name" yaml:"name"`
	Language  string `json:"language" yaml:"language"` // BCP 47, e.g. en-US
	Quality   string `json:"quality,omitempty" yaml:"quality,omitempty"`
	Path      string `json:"path" yaml:"path"`
	Available bool   `json:"available" yaml:"available"` // model config present
}

// ID is the model file name without extension, e.g. en_US-amy-medium.
func (v VoiceInfo) ID() string {
	return strings.TrimSuffix(filepath.Base(v.Path), ".onnx")
}

// LanguageName renders Language in English, e.g. "American English".
func (v VoiceInfo) LanguageName() string {
	tag, err := language.Parse(v.Language)
	if err != nil {
		return v.Language
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return v.Language
}

// String returns a one-line description of the voice.
func (v VoiceInfo) String() string {
	s := fmt.Sprintf("%s (%s)", v.Name, v.LanguageName())
	if v.Quality != "" {
		s += ", " + v.Quality
	}
	return s
}

// Voices lists every *.onnx model in dir, sorted by file name. A missing
// directory yields no voices.
func Voices(dir string) ([]VoiceInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read voices directory: %w", err)
	}

	var voices []VoiceInfo
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".onnx" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		v := ParseVoiceName(path)
		_, statErr := os.Stat(path + ".json")
		v.Available = statErr == nil
		voices = append(voices, v)
	}

	sort.Slice(voices, func(i, j int) bool { return voices[i].Path < voices[j].Path })
	return voices, nil
}

// ParseVoiceName reads piper's xx_YY-name-quality file naming convention.
// Names that do not follow it keep the file name and an "und" language.
func ParseVoiceName(path string) VoiceInfo {
	v := VoiceInfo{Path: path, Language: "und"}
	base := strings.TrimSuffix(filepath.Base(path), ".onnx")

	parts := strings.Split(base, "-")
	if len(parts) < 2 {
		v.Name = base
		return v
	}

	v.Language = strings.ReplaceAll(parts[0], "_", "-")
	v.Name = titleWords(strings.ReplaceAll(parts[1], "_", " "))
	if len(parts) > 2 {
		v.Quality = strings.Join(parts[2:], "-")
	}
	return v
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

type voiceSource []VoiceInfo

func (s voiceSource) String(i int) string { return s[i].ID() + " " + s[i].LanguageName() }
func (s voiceSource) Len() int            { return len(s) }

// FilterVoices ranks voices by a fuzzy match of pattern against the model
// ID and language name. An empty pattern returns voices unchanged.
func FilterVoices(voices []VoiceInfo, pattern string) []VoiceInfo {
	if strings.TrimSpace(pattern) == "" {
		return voices
	}
	matches := fuzzy.FindFrom(pattern, voiceSource(voices))
	out := make([]VoiceInfo, len(matches))
	for i, m := range matches {
		out[i] = voices[m.Index]
	}
	return out
}
