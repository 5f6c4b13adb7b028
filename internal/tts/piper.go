package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/cache"
)

// DefaultTimeout bounds a single piper run.
const DefaultTimeout = 30 * time.Second

// Cache stores rendered WAV bytes by key.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// PiperConfig holds configuration for the Piper engine.
type PiperConfig struct {
	// Binary is the piper executable, a path or a name looked up on PATH.
	Binary string

	// Model is the .onnx voice model.
	Model string

	// Timeout bounds each synthesis; zero uses DefaultTimeout.
	Timeout time.Duration

	// LengthScale is piper's phoneme length multiplier; zero leaves piper's
	// default.
	LengthScale float64
}

// Result describes synthesized speech ready to be loaded for playback.
type Result struct {
	AudioPath   string       `json:"audio_path"`
	WordTimings []WordTiming `json:"word_timings"`
	DurationMS  uint64       `json:"duration_ms"`
	Cached      bool         `json:"cached"`
}

// Piper synthesizes speech with the external piper executable. Each call
// runs a fresh process with the text on stdin.
type Piper struct {
	cfg    PiperConfig
	cache  Cache
	logger *log.Logger
}

// PiperOption configures a Piper.
type PiperOption func(*Piper)

// WithCache serves and stores rendered audio through c.
func WithCache(c Cache) PiperOption {
	return func(p *Piper) { p.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) PiperOption {
	return func(p *Piper) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPiper creates a Piper engine. Nothing is validated until Synthesize.
func NewPiper(cfg PiperConfig, opts ...PiperOption) *Piper {
	if cfg.Binary == "" {
		cfg.Binary = "piper"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	p := &Piper{
		cfg:    cfg,
		logger: log.Default().WithPrefix("piper"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration.
func (p *Piper) Config() PiperConfig {
	return p.cfg
}

// Available reports whether the piper executable can be resolved.
func (p *Piper) Available() bool {
	_, err := p.binary()
	return err == nil
}

func (p *Piper) binary() (string, error) {
	path, err := exec.LookPath(p.cfg.Binary)
	if err != nil {
		return "", NewTTSError(ErrorCodeEngineUnavailable, "cannot resolve "+p.cfg.Binary, err)
	}
	return path, nil
}

// Synthesize renders text to a WAV file at outPath. Rendered audio is
// served from the cache when possible.
func (p *Piper) Synthesize(ctx context.Context, text, outPath string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, NewTTSError(ErrorCodeInvalidInput, "nothing to speak", nil)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return Result{}, fmt.Errorf("unable to create output directory: %w", err)
	}

	key := cache.Key(text, p.cfg.Model, p.cfg.LengthScale)
	cached := false
	if data, ok := p.lookup(key); ok {
		if err := os.WriteFile(outPath, data, 0o644); err != nil { //nolint:gosec
			return Result{}, fmt.Errorf("unable to write cached audio: %w", err)
		}
		cached = true
		p.logger.Debug("Synthesis served from cache", "chars", len(text))
	} else {
		start := time.Now()
		if err := p.run(ctx, text, outPath); err != nil {
			return Result{}, err
		}
		p.logger.Debug("Synthesis finished", "chars", len(text), "took", time.Since(start))
		p.store(key, outPath)
	}

	timings := EstimateWordTimings(text, 1.0)
	durationMS := TotalMS(timings)
	if d, err := audio.ProbeDuration(outPath); err == nil && d > 0 {
		durationMS = uint64(d.Milliseconds())
		timings = ScaleTimings(timings, durationMS)
	} else if err != nil {
		p.logger.Warn("Falling back to estimated duration", "path", outPath, "err", err)
	}

	return Result{
		AudioPath:   outPath,
		WordTimings: timings,
		DurationMS:  durationMS,
		Cached:      cached,
	}, nil
}

func (p *Piper) args(outPath string) []string {
	args := []string{"--model", p.cfg.Model, "--output_file", outPath}
	if p.cfg.LengthScale > 0 {
		args = append(args, "--length_scale", strconv.FormatFloat(p.cfg.LengthScale, 'f', 2, 64))
	}
	return args
}

func (p *Piper) run(ctx context.Context, text, outPath string) error {
	bin, err := p.binary()
	if err != nil {
		return err
	}
	if p.cfg.Model == "" {
		return NewTTSError(ErrorCodeModelMissing, "no voice model configured", nil)
	}
	if _, err := os.Stat(p.cfg.Model); err != nil {
		return NewTTSError(ErrorCodeModelMissing, "cannot read voice model", err).
			WithContext("model", p.cfg.Model)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, p.args(outPath)...) //nolint:gosec
	// Text goes in before start so piper never races an empty stdin.
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// Interrupt first, kill if piper has not exited shortly after.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 100 * time.Millisecond

	runErr := cmd.Run()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return NewTTSError(ErrorCodeTimeout, fmt.Sprintf("piper did not finish within %s", p.cfg.Timeout), ctx.Err())
	case errors.Is(ctx.Err(), context.Canceled):
		return NewTTSError(ErrorCodeCanceled, "synthesis canceled", ctx.Err())
	case runErr != nil:
		return NewTTSError(ErrorCodeEngineFailure, "piper failed", runErr).
			WithContext("stderr", strings.TrimSpace(stderr.String()))
	}

	if st, err := os.Stat(outPath); err != nil || st.Size() == 0 {
		return NewTTSError(ErrorCodeEngineFailure, "piper produced no audio", err).
			WithContext("stderr", strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (p *Piper) lookup(key string) ([]byte, bool) {
	if p.cache == nil {
		return nil, false
	}
	return p.cache.Get(key)
}

func (p *Piper) store(key, path string) {
	if p.cache == nil {
		return
	}
	data, err := os.ReadFile(path)
	if err == nil {
		err = p.cache.Put(key, data)
	}
	if err != nil {
		// non-fatal
		p.logger.Debug("Could not cache synthesized audio", "err", err)
	}
}

// StderrOf returns the piper stderr captured in err, if any.
func StderrOf(err error) string {
	var te *TTSError
	if errors.As(err, &te) {
		if s, ok := te.Context["stderr"].(string); ok {
			return s
		}
	}
	return ""
}
