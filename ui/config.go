package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	// Document to read. Ignored when Text is set.
	Path string

	// Text read from the clipboard or stdin instead of a file.
	Text string

	// Directory for synthesized paragraph audio.
	AudioDir string

	// Initial playback settings.
	Speed       float64
	Volume      float64
	AutoAdvance bool

	EnableMouse bool

	// For debugging the UI
	PollInterval   time.Duration `env:"READALOUD_POLL"       envDefault:"100ms"`
	StatusTimeout  time.Duration `env:"READALOUD_STATUS_TTL" envDefault:"3s"`
	DisableWatch   bool          `env:"READALOUD_NO_WATCH"`
	HighlightWords bool          `env:"READALOUD_HIGHLIGHT"  envDefault:"true"`
}
