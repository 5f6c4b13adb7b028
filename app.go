package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

const appName = "readaloud"

// settings is the merged view of flags, environment and config file.
type settings struct {
	Speed       float64 `yaml:"speed"`
	Volume      float64 `yaml:"volume"`
	AutoAdvance bool    `yaml:"auto_advance"`
	Mouse       bool    `yaml:"mouse"`

	Piper struct {
		Binary      string        `yaml:"binary"`
		Model       string        `yaml:"model"`
		VoicesDir   string        `yaml:"voices_dir"`
		Timeout     time.Duration `yaml:"timeout"`
		LengthScale float64       `yaml:"length_scale"`
	} `yaml:"piper"`

	Cache struct {
		Dir        string `yaml:"dir"`
		MaxSize    int64  `yaml:"max_size"`
		MemorySize int64  `yaml:"memory_size"`
		Level      int    `yaml:"compression_level"`
	} `yaml:"cache"`

	Audio struct {
		SampleRate int           `yaml:"sample_rate"`
		Buffer     time.Duration `yaml:"buffer"`
	} `yaml:"audio"`

	Playback struct {
		Tick          time.Duration `yaml:"tick"`
		FinishTimeout time.Duration `yaml:"finish_timeout"`
	} `yaml:"playback"`
}

func setDefaults() {
	dev := audio.DefaultDeviceConfig()

	viper.SetDefault("speed", 1.0)
	viper.SetDefault("volume", 1.0)
	viper.SetDefault("auto_advance", true)
	viper.SetDefault("mouse", false)
	viper.SetDefault("piper.binary", "piper")
	viper.SetDefault("piper.model", "")
	viper.SetDefault("piper.voices_dir", "")
	viper.SetDefault("piper.timeout", tts.DefaultTimeout)
	viper.SetDefault("piper.length_scale", 0.0)
	viper.SetDefault("cache.dir", "")
	viper.SetDefault("cache.max_size", 100)
	viper.SetDefault("cache.memory_size", 32)
	viper.SetDefault("cache.compression_level", 3)
	viper.SetDefault("audio.sample_rate", dev.SampleRate)
	viper.SetDefault("audio.buffer", dev.BufferSize)
	viper.SetDefault("playback.tick", playback.DefaultTick)
	viper.SetDefault("playback.finish_timeout", playback.DefaultFinishTimeout)
}

func loadSettings() (settings, error) {
	var s settings
	s.Speed = viper.GetFloat64("speed")
	s.Volume = viper.GetFloat64("volume")
	s.AutoAdvance = viper.GetBool("auto_advance")
	s.Mouse = viper.GetBool("mouse")

	s.Piper.Binary = expandPath(viper.GetString("piper.binary"))
	s.Piper.VoicesDir = expandPath(viper.GetString("piper.voices_dir"))
	s.Piper.Timeout = viper.GetDuration("piper.timeout")
	s.Piper.LengthScale = viper.GetFloat64("piper.length_scale")

	s.Cache.Dir = expandPath(viper.GetString("cache.dir"))
	s.Cache.MaxSize = viper.GetInt64("cache.max_size")
	s.Cache.MemorySize = viper.GetInt64("cache.memory_size")
	s.Cache.Level = viper.GetInt("cache.compression_level")

	s.Audio.SampleRate = viper.GetInt("audio.sample_rate")
	s.Audio.Buffer = viper.GetDuration("audio.buffer")

	s.Playback.Tick = viper.GetDuration("playback.tick")
	s.Playback.FinishTimeout = viper.GetDuration("playback.finish_timeout")

	scope := gap.NewScope(gap.User, appName)
	if s.Piper.VoicesDir == "" {
		dir, err := scope.DataPath("voices")
		if err != nil {
			return s, fmt.Errorf("unable to find data directory: %w", err)
		}
		s.Piper.VoicesDir = dir
	}
	if s.Cache.Dir == "" {
		dir, err := scope.CacheDir()
		if err != nil {
			return s, fmt.Errorf("unable to find cache directory: %w", err)
		}
		s.Cache.Dir = filepath.Join(dir, "audio")
	}
	s.Piper.Model = resolveModel(viper.GetString("piper.model"), s.Piper.VoicesDir)

	if err := validateSettings(s); err != nil {
		return s, err
	}
	return s, nil
}

func validateSettings(s settings) error {
	if s.Speed < playback.MinSpeed || s.Speed > playback.MaxSpeed {
		return fmt.Errorf("speed must be between %.1f and %.1f, got %.2f", playback.MinSpeed, playback.MaxSpeed, s.Speed)
	}
	if s.Volume < playback.MinVolume || s.Volume > playback.MaxVolume {
		return fmt.Errorf("volume must be between %.1f and %.1f, got %.2f", playback.MinVolume, playback.MaxVolume, s.Volume)
	}
	if s.Cache.MaxSize < 1 || s.Cache.MaxSize > 10000 {
		return fmt.Errorf("cache max_size must be between 1 and 10000 MB, got %d", s.Cache.MaxSize)
	}
	if s.Piper.LengthScale < 0 || s.Piper.LengthScale > 3 {
		return fmt.Errorf("piper length_scale must be between 0 and 3.0, got %.2f", s.Piper.LengthScale)
	}
	return nil
}

// resolveModel turns a bare voice name into a model path in voicesDir.
func resolveModel(model, voicesDir string) string {
	if model == "" {
		return ""
	}
	model = expandPath(model)
	if strings.ContainsRune(model, os.PathSeparator) || strings.HasSuffix(model, ".onnx") {
		return model
	}
	return filepath.Join(voicesDir, model+".onnx")
}

// expandPath expands a leading tilde and environment variables.
func expandPath(path string) string {
	if path == "" {
		return ""
	}
	if p, err := homedir.Expand(path); err == nil {
		path = p
	}
	return os.ExpandEnv(path)
}

func newController(s settings) (*playback.Controller, error) {
	backend, err := audio.NewOtoBackend(audio.DeviceConfig{
		SampleRate: s.Audio.SampleRate,
		BufferSize: s.Audio.Buffer,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to set up audio: %w", err)
	}

	c := playback.New(backend,
		playback.WithTick(s.Playback.Tick),
		playback.WithFinishTimeout(s.Playback.FinishTimeout),
		playback.WithLogger(log.Default().WithPrefix("playback")),
	)
	c.SetSpeed(s.Speed)
	c.SetVolume(s.Volume)
	return c, nil
}

func openCache(s settings) (*cache.Store, error) {
	return cache.Open(cache.Config{
		Dir:              s.Cache.Dir,
		MemoryCapacity:   s.Cache.MemorySize * 1024 * 1024,
		DiskCapacity:     s.Cache.MaxSize * 1024 * 1024,
		CompressionLevel: s.Cache.Level,
	})
}

// newSynthesizer returns the piper engine and its cache. The cache is nil
// when it could not be opened; synthesis still works without it.
func newSynthesizer(s settings) (*tts.Piper, *cache.Store) {
	opts := []tts.PiperOption{tts.WithLogger(log.Default().WithPrefix("piper"))}

	store, err := openCache(s)
	if err != nil {
		log.Warn("Audio cache disabled", "dir", s.Cache.Dir, "err", err)
	} else {
		opts = append(opts, tts.WithCache(store))
	}

	piper := tts.NewPiper(tts.PiperConfig{
		Binary:      s.Piper.Binary,
		Model:       s.Piper.Model,
		Timeout:     s.Piper.Timeout,
		LengthScale: s.Piper.LengthScale,
	}, opts...)
	return piper, store
}
