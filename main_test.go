package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

func TestResolveModel(t *testing.T) {
	voices := filepath.Join("data", "voices")
	tests := []struct {
		model string
		want  string
	}{
		{"", ""},
		{"en_US-lessac-medium", filepath.Join(voices, "en_US-lessac-medium.onnx")},
		{"custom.onnx", "custom.onnx"},
		{filepath.Join("models", "x.onnx"), filepath.Join("models", "x.onnx")},
	}
	for _, tt := range tests {
		if got := resolveModel(tt.model, voices); got != tt.want {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("READALOUD_TEST_DIR", "/tmp/readaloud")
	if got := expandPath("$READALOUD_TEST_DIR/cache"); got != "/tmp/readaloud/cache" {
		t.Errorf("expandPath = %q", got)
	}
	if got := expandPath(""); got != "" {
		t.Errorf("expandPath(\"\") = %q", got)
	}
	if got := expandPath("~/x"); strings.HasPrefix(got, "~") {
		t.Errorf("tilde not expanded: %q", got)
	}
}

func validSettings() settings {
	var s settings
	s.Speed = 1
	s.Volume = 1
	s.Cache.MaxSize = 100
	return s
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*settings)
		wantErr bool
	}{
		{"defaults", func(*settings) {}, false},
		{"slowest", func(s *settings) { s.Speed = playback.MinSpeed }, false},
		{"too slow", func(s *settings) { s.Speed = 0.1 }, true},
		{"too fast", func(s *settings) { s.Speed = 2.5 }, true},
		{"muted", func(s *settings) { s.Volume = 0 }, false},
		{"too loud", func(s *settings) { s.Volume = 1.5 }, true},
		{"empty cache", func(s *settings) { s.Cache.MaxSize = 0 }, true},
		{"bad length scale", func(s *settings) { s.Piper.LengthScale = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.modify(&s)
			if err := validateSettings(s); (err != nil) != tt.wantErr {
				t.Errorf("validateSettings() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteSettings(t *testing.T) {
	s := validSettings()
	s.Piper.Timeout = 30 * time.Second
	s.Playback.Tick = 50 * time.Millisecond

	var buf bytes.Buffer
	if err := writeSettings(&buf, s); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"speed: 1", "timeout: 30s", "tick: 50ms", "max_size: 100"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatCacheStats(t *testing.T) {
	out := formatCacheStats("/cache", cache.Stats{
		Capacity: 100 * 1000 * 1000,
		Size:     25 * 1000 * 1000,
		Items:    1234,
	})
	for _, want := range []string{"/cache", "1,234", "25 MB", "100 MB", "25%", "never"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatVoice(t *testing.T) {
	v := tts.ParseVoiceName("/voices/en_US-lessac-medium.onnx")
	v.Available = true

	if got := formatVoice(v, v.Path); !strings.Contains(strings.ToLower(got), "lessac") {
		t.Errorf("formatVoice = %q", got)
	}
	v.Available = false
	if got := formatVoice(v, ""); !strings.Contains(got, "missing") {
		t.Errorf("unavailable voice not marked: %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	for ms, want := range map[uint64]string{
		0:      "0:00",
		999:    "0:00",
		61000:  "1:01",
		600000: "10:00",
	} {
		if got := formatDuration(ms); got != want {
			t.Errorf("formatDuration(%d) = %q, want %q", ms, got, want)
		}
	}
}

type recordingReporter struct {
	mu     sync.Mutex
	states []playback.AudioState
	final  *playback.AudioState
}

func (r *recordingReporter) state(st playback.AudioState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
}

func (r *recordingReporter) done(st playback.AudioState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.final = &st
}

func TestRunPlaybackToEnd(t *testing.T) {
	backend := audio.NewMockBackend(nil)
	backend.AddMedia("speech.wav", 80*time.Millisecond)
	c := playback.New(backend, playback.WithTick(5*time.Millisecond))
	defer c.Close() //nolint:errcheck

	r := &recordingReporter{}
	err := runPlayback(context.Background(), c, "speech.wav", 80, r, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("runPlayback() error = %v", err)
	}
	if r.final == nil {
		t.Fatal("no final state reported")
	}
	if r.final.DurationMS != 80 {
		t.Errorf("duration = %d, want 80", r.final.DurationMS)
	}
	if len(r.states) == 0 {
		t.Errorf("no progress reported")
	}
}

func TestRunPlaybackInterrupted(t *testing.T) {
	backend := audio.NewMockBackend(nil)
	backend.AddMedia("long.wav", time.Hour)
	c := playback.New(backend, playback.WithTick(5*time.Millisecond))
	defer c.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r := &recordingReporter{}
	err := runPlayback(ctx, c, "long.wav", 3600000, r, 10*time.Millisecond)
	if err == nil {
		t.Errorf("runPlayback() should report the deadline")
	}
	// Close handles the queued Stop before returning.
	_ = c.Close()
	if s := backend.LastSink(); s == nil || !s.Closed() {
		t.Errorf("sink not released after interrupt")
	}
}

func TestRunPlaybackMissingFile(t *testing.T) {
	c := playback.New(audio.NewMockBackend(nil))
	defer c.Close() //nolint:errcheck

	err := runPlayback(context.Background(), c, "missing.wav", 0, &recordingReporter{}, time.Millisecond)
	if err == nil {
		t.Fatal("runPlayback() should fail for unknown media")
	}
}

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	r := jsonReporter{enc: json.NewEncoder(&buf)}
	r.state(playback.AudioState{IsPlaying: true, PositionMS: 10, DurationMS: 20, Speed: 1, Volume: 1})

	want := `{"is_playing":true,"position_ms":10,"duration_ms":20,"speed":1,"volume":1}` + "\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
