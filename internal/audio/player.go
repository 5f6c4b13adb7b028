package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
	"github.com/gopxl/beep"
)

const (
	// Output is always 16-bit little endian stereo.
	outputChannels = 2
	bytesPerSample = 2
	bytesPerFrame  = outputChannels * bytesPerSample

	// resampleQuality is the beep interpolation quality (1-64).
	resampleQuality = 4
)

// DeviceConfig configures the output device.
type DeviceConfig struct {
	SampleRate int           // 44100 or 48000 Hz
	BufferSize time.Duration // device buffer, 0 for the platform default
}

// DefaultDeviceConfig returns the default device configuration.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		SampleRate: 44100,
		BufferSize: 50 * time.Millisecond,
	}
}

// validateConfig validates the device configuration.
func validateConfig(config DeviceConfig) error {
	// OTO only supports specific sample rates reliably
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}
	if config.BufferSize < 0 {
		return errors.New("buffer size cannot be negative")
	}
	return nil
}

// OtoBackend plays files through the system audio device. oto allows one
// context per process, so the context is created on the first Open and kept
// until the process exits; every Sink gets its own oto player.
type OtoBackend struct {
	config DeviceConfig
}

// device is the process-wide oto context. oto refuses a second NewContext
// even after the first one failed, so the first outcome is kept and
// returned to every later caller.
var device struct {
	mu   sync.Mutex
	init bool
	ctx  *oto.Context
	err  error
}

// newOtoContext is swapped out in tests.
var newOtoContext = oto.NewContext

// NewOtoBackend creates a backend for the given device configuration. No
// device is touched until the first Open.
func NewOtoBackend(config DeviceConfig) (*OtoBackend, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &OtoBackend{config: config}, nil
}

// context returns the process-wide oto context, creating it on first use
// with this backend's configuration. Device setup is attempted once per
// process.
func (b *OtoBackend) context() (*oto.Context, error) {
	device.mu.Lock()
	defer device.mu.Unlock()

	if !device.init {
		device.init = true
		device.ctx, device.err = b.newContext()
	}
	if device.err != nil {
		return nil, device.err
	}
	if err := device.ctx.Err(); err != nil {
		return nil, err
	}
	return device.ctx, nil
}

func (b *OtoBackend) newContext() (*oto.Context, error) {
	op := &oto.NewContextOptions{
		SampleRate:   b.config.SampleRate,
		ChannelCount: outputChannels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   b.config.BufferSize,
	}
	ctx, ready, err := newOtoContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	log.Debug("Audio output initialized", "sampleRate", b.config.SampleRate, "channels", outputChannels)
	return ctx, nil
}

// Open implements Backend.
func (b *OtoBackend) Open(path string, speed, volume float64) (Sink, error) {
	src, format, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	ctx, err := b.context()
	if err != nil {
		_ = src.Close()
		return nil, newError(ErrorCodeDevice, path, err)
	}

	base := float64(format.SampleRate) / float64(b.config.SampleRate)
	r := newStreamReader(src, base, speed)

	player := ctx.NewPlayer(r)
	player.SetVolume(volume)

	return &otoSink{player: player, reader: r}, nil
}

// otoSink is a Sink backed by one oto player.
type otoSink struct {
	player *oto.Player
	reader *streamReader

	closeOnce sync.Once
}

func (s *otoSink) Play()                    { s.player.Play() }
func (s *otoSink) Pause()                   { s.player.Pause() }
func (s *otoSink) SetSpeed(speed float64)   { s.reader.setSpeed(speed) }
func (s *otoSink) SetVolume(volume float64) { s.player.SetVolume(volume) }

// Empty reports whether the decoder is drained and oto has played out
// everything it buffered.
func (s *otoSink) Empty() bool {
	return s.reader.drained() && s.player.BufferedSize() == 0
}

func (s *otoSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.player.Pause()
		err = s.player.Close()
		if cerr := s.reader.close(); err == nil {
			err = cerr
		}
	})
	return err
}

// streamReader adapts a beep streamer to the PCM byte stream oto pulls from
// its own goroutine. The resampler converts the file rate to the device
// rate and carries the playback speed.
type streamReader struct {
	mu        sync.Mutex
	src       beep.StreamSeekCloser
	resampler *beep.Resampler
	base      float64
	buf       [][2]float64
	done      bool
}

func newStreamReader(src beep.StreamSeekCloser, base, speed float64) *streamReader {
	return &streamReader{
		src:       src,
		base:      base,
		resampler: beep.ResampleRatio(resampleQuality, base*speed, src),
	}
}

// Read fills p with 16-bit little endian stereo frames.
func (r *streamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return 0, io.EOF
	}

	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	if cap(r.buf) < frames {
		r.buf = make([][2]float64, frames)
	}
	buf := r.buf[:frames]

	n, ok := r.resampler.Stream(buf)
	if n == 0 && !ok {
		r.done = true
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		for ch := 0; ch < outputChannels; ch++ {
			off := i*bytesPerFrame + ch*bytesPerSample
			binary.LittleEndian.PutUint16(p[off:], uint16(toInt16(buf[i][ch])))
		}
	}
	return n * bytesPerFrame, nil
}

func (r *streamReader) setSpeed(speed float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resampler.SetRatio(r.base * speed)
}

func (r *streamReader) drained() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *streamReader) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = true
	return r.src.Close()
}

// toInt16 converts a [-1, 1] sample to int16 with clipping.
func toInt16(v float64) int16 {
	switch {
	case v >= 1:
		return 32767
	case v <= -1:
		return -32768
	default:
		return int16(v * 32767)
	}
}
