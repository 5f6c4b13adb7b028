package audio

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// MockBackend implements Backend for testing purposes. It simulates
// playback against a clock without producing sound.
type MockBackend struct {
	mu     sync.Mutex
	media  map[string]time.Duration
	errs   map[string]error
	sinks  []*MockSink
	now    func() time.Time
	opened atomic.Int64
}

// NewMockBackend creates a mock backend that reads time from now. A nil now
// uses time.Now.
func NewMockBackend(now func() time.Time) *MockBackend {
	if now == nil {
		now = time.Now
	}
	return &MockBackend{
		media: make(map[string]time.Duration),
		errs:  make(map[string]error),
		now:   now,
	}
}

// AddMedia registers a file the backend can open and its playing time at
// normal speed.
func (b *MockBackend) AddMedia(path string, length time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.media[path] = length
}

// FailOpen makes every Open of path fail with err.
func (b *MockBackend) FailOpen(path string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs[path] = err
}

// Open implements Backend. Unknown paths fail with a FILE_OPEN error.
func (b *MockBackend) Open(path string, speed, volume float64) (Sink, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err, ok := b.errs[path]; ok {
		return nil, err
	}
	length, ok := b.media[path]
	if !ok {
		return nil, newError(ErrorCodeFileOpen, path, errMockNotFound)
	}

	s := &MockSink{
		Path:   path,
		length: length,
		speed:  speed,
		volume: volume,
		now:    b.now,
	}
	b.sinks = append(b.sinks, s)
	b.opened.Add(1)
	return s, nil
}

// OpenCount returns how many sinks were opened successfully.
func (b *MockBackend) OpenCount() int {
	return int(b.opened.Load())
}

// Sinks returns every sink opened so far, oldest first.
func (b *MockBackend) Sinks() []*MockSink {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*MockSink, len(b.sinks))
	copy(out, b.sinks)
	return out
}

// LastSink returns the most recently opened sink, or nil.
func (b *MockBackend) LastSink() *MockSink {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sinks) == 0 {
		return nil
	}
	return b.sinks[len(b.sinks)-1]
}

// MockSink implements Sink. Media is consumed at the sink's speed while it
// plays; it reports Empty once the whole length has been consumed or after
// Drain.
type MockSink struct {
	Path string

	mu        sync.Mutex
	now       func() time.Time
	length    time.Duration
	consumed  time.Duration
	resumedAt time.Time
	playing   bool
	drained   bool
	closed    bool
	speed     float64
	volume    float64

	plays  int
	pauses int
}

func (s *MockSink) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays++
	if s.playing || s.closed {
		return
	}
	s.playing = true
	s.resumedAt = s.now()
}

func (s *MockSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauses++
	if !s.playing {
		return
	}
	s.fold()
	s.playing = false
}

func (s *MockSink) SetSpeed(speed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		s.fold()
		s.resumedAt = s.now()
	}
	s.speed = speed
}

func (s *MockSink) SetVolume(volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = volume
}

func (s *MockSink) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drained || s.closed {
		return true
	}
	consumed := s.consumed
	if s.playing {
		consumed += time.Duration(float64(s.now().Sub(s.resumedAt)) * s.speed)
	}
	return consumed >= s.length
}

func (s *MockSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.playing = false
	return nil
}

// Drain marks the sink as having played out all of its audio.
func (s *MockSink) Drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drained = true
}

// Speed returns the speed last applied to the sink.
func (s *MockSink) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// Volume returns the volume last applied to the sink.
func (s *MockSink) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Playing reports whether the sink is currently playing.
func (s *MockSink) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Closed reports whether Close was called.
func (s *MockSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Counts returns how many times Play and Pause were called.
func (s *MockSink) Counts() (plays, pauses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays, s.pauses
}

func (s *MockSink) fold() {
	s.consumed += time.Duration(float64(s.now().Sub(s.resumedAt)) * s.speed)
}

var errMockNotFound = errors.New("no such mock media")

var (
	_ Backend = (*MockBackend)(nil)
	_ Backend = (*OtoBackend)(nil)
	_ Sink    = (*MockSink)(nil)
	_ Sink    = (*otoSink)(nil)
)
