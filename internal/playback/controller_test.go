package playback

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/audio"
)

// manualClock is a settable clock shared by the controller and the mock
// backend so positions are exact.
type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// newTestController returns a controller on a mock backend that knows
// "a.wav" (5s) and "b.wav" (2s).
func newTestController(t *testing.T, opts ...Option) (*Controller, *audio.MockBackend, *manualClock) {
	t.Helper()
	clock := newManualClock()
	backend := audio.NewMockBackend(clock.Now)
	backend.AddMedia("a.wav", 5*time.Second)
	backend.AddMedia("b.wav", 2*time.Second)

	opts = append([]Option{
		WithClock(clock.Now),
		WithTick(5 * time.Millisecond),
		WithLogger(quietLogger()),
	}, opts...)
	c := New(backend, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, backend, clock
}

func query(t *testing.T, c *Controller) AudioState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := c.QueryState(ctx)
	if err != nil {
		t.Fatalf("QueryState() unexpected error: %v", err)
	}
	return st
}

// waitFor polls State until cond holds or the deadline passes.
func waitFor(t *testing.T, c *Controller, cond func(AudioState) bool) AudioState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		st := c.State()
		if cond(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached, last state %+v", st)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestInitialState(t *testing.T) {
	c, _, _ := newTestController(t)

	st := c.State()
	want := AudioState{Speed: 1.0, Volume: 1.0}
	if st != want {
		t.Errorf("initial State() = %+v, want %+v", st, want)
	}
	if !c.IsFinished() {
		t.Error("IsFinished() should be true before any load")
	}
}

func TestSpeedAndVolumeClamping(t *testing.T) {
	tests := []struct {
		name       string
		speed      float64
		volume     float64
		wantSpeed  float64
		wantVolume float64
	}{
		{"in range", 1.25, 0.4, 1.25, 0.4},
		{"below range", 0.1, -0.5, 0.5, 0.0},
		{"above range", 9.0, 3.0, 2.0, 1.0},
		{"bounds", 0.5, 1.0, 0.5, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, backend, _ := newTestController(t)
			if err := c.Load("a.wav", 5000); err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}

			c.SetSpeed(tt.speed)
			c.SetVolume(tt.volume)

			st := query(t, c)
			if st.Speed != tt.wantSpeed || st.Volume != tt.wantVolume {
				t.Errorf("speed/volume = %v/%v, want %v/%v", st.Speed, st.Volume, tt.wantSpeed, tt.wantVolume)
			}

			sink := backend.LastSink()
			if sink.Speed() != tt.wantSpeed || sink.Volume() != tt.wantVolume {
				t.Errorf("sink speed/volume = %v/%v, want %v/%v", sink.Speed(), sink.Volume(), tt.wantSpeed, tt.wantVolume)
			}
		})
	}
}

func TestSettingsCarryIntoNextLoad(t *testing.T) {
	c, backend, _ := newTestController(t)

	c.SetSpeed(1.5)
	c.SetVolume(0.3)
	if err := c.Load("a.wav", 5000); err != nil {
		t.Fatal(err)
	}
	query(t, c)

	sink := backend.LastSink()
	if sink.Speed() != 1.5 || sink.Volume() != 0.3 {
		t.Errorf("new sink speed/volume = %v/%v, want 1.5/0.3", sink.Speed(), sink.Volume())
	}
}

func TestNaNIsIgnored(t *testing.T) {
	c, _, _ := newTestController(t)

	c.SetSpeed(1.5)
	c.SetSpeed(nan())
	c.SetVolume(nan())

	st := query(t, c)
	if st.Speed != 1.5 || st.Volume != 1.0 {
		t.Errorf("NaN should be ignored, got speed %v volume %v", st.Speed, st.Volume)
	}
}

func TestLoadedButNotPlaying(t *testing.T) {
	c, _, clock := newTestController(t)

	if err := c.Load("a.wav", 5000); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		st := query(t, c)
		if st.PositionMS != 0 || st.IsPlaying {
			t.Fatalf("loaded-but-paused state = %+v, want position 0 and not playing", st)
		}
		if st.DurationMS != 5000 {
			t.Fatalf("duration = %d, want 5000", st.DurationMS)
		}
	}
	if c.IsFinished() {
		t.Error("IsFinished() should be false for a loaded, unplayed source")
	}
}

func TestPositionFollowsClockAndSpeed(t *testing.T) {
	tests := []struct {
		speed   float64
		elapsed time.Duration
		want    uint64
	}{
		{1.0, time.Second, 1000},
		{2.0, 1500 * time.Millisecond, 3000},
		{0.5, 3 * time.Second, 1500},
	}

	for _, tt := range tests {
		c, _, clock := newTestController(t)
		c.SetSpeed(tt.speed)
		_ = c.Load("a.wav", 5000)
		_ = c.Play()
		query(t, c)

		clock.Advance(tt.elapsed)
		st := query(t, c)
		if !st.IsPlaying || st.PositionMS != tt.want {
			t.Errorf("speed %v after %v: state %+v, want playing at %d", tt.speed, tt.elapsed, st, tt.want)
		}
	}
}

func TestPauseResumeKeepsPosition(t *testing.T) {
	c, _, clock := newTestController(t)

	_ = c.Load("a.wav", 5000)
	_ = c.Play()
	query(t, c)
	clock.Advance(1200 * time.Millisecond)

	_ = c.Pause()
	paused := query(t, c)
	if paused.IsPlaying || paused.PositionMS != 1200 {
		t.Fatalf("paused state = %+v, want not playing at 1200", paused)
	}

	clock.Advance(10 * time.Second)
	if st := query(t, c); st.PositionMS != 1200 {
		t.Fatalf("position moved while paused: %d", st.PositionMS)
	}

	_ = c.Play()
	query(t, c)
	clock.Advance(300 * time.Millisecond)
	if st := query(t, c); !st.IsPlaying || st.PositionMS != 1500 {
		t.Errorf("resumed state = %+v, want playing at 1500", st)
	}
}

func TestPlayWhilePlayingDoesNotRewind(t *testing.T) {
	c, _, clock := newTestController(t)

	_ = c.Load("a.wav", 5000)
	_ = c.Play()
	query(t, c)
	clock.Advance(time.Second)
	_ = c.Play()
	clock.Advance(time.Second)

	if st := query(t, c); st.PositionMS != 2000 {
		t.Errorf("position = %d, want 2000", st.PositionMS)
	}
}

func TestPauseAndPlayWithoutSourceAreNoops(t *testing.T) {
	c, _, _ := newTestController(t)

	if err := c.Play(); err != nil {
		t.Fatal(err)
	}
	if err := c.Pause(); err != nil {
		t.Fatal(err)
	}
	st := query(t, c)
	if st.IsPlaying || st.PositionMS != 0 || st.DurationMS != 0 {
		t.Errorf("state without source = %+v", st)
	}
}

func TestStopResets(t *testing.T) {
	c, backend, clock := newTestController(t)

	_ = c.Load("a.wav", 5000)
	_ = c.Play()
	query(t, c)
	clock.Advance(2 * time.Second)

	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	st := query(t, c)
	if st.PositionMS != 0 || st.IsPlaying || st.DurationMS != 0 {
		t.Errorf("stopped state = %+v, want zero position, duration and not playing", st)
	}
	if !backend.LastSink().Closed() {
		t.Error("Stop should release the sink")
	}
	if !c.IsFinished() {
		t.Error("IsFinished() should be true after Stop")
	}

	// Play after Stop has nothing to resume.
	_ = c.Play()
	clock.Advance(time.Second)
	if st := query(t, c); st.IsPlaying || st.PositionMS != 0 {
		t.Errorf("Play after Stop should be a no-op, got %+v", st)
	}
}

func TestLoadReplacesPreviousSource(t *testing.T) {
	c, backend, clock := newTestController(t)

	_ = c.Load("a.wav", 5000)
	_ = c.Play()
	query(t, c)
	clock.Advance(time.Second)

	_ = c.Load("b.wav", 2000)
	st := query(t, c)
	if st.IsPlaying || st.PositionMS != 0 || st.DurationMS != 2000 {
		t.Errorf("state after reload = %+v", st)
	}

	sinks := backend.Sinks()
	if len(sinks) != 2 {
		t.Fatalf("expected 2 sinks, got %d", len(sinks))
	}
	if !sinks[0].Closed() {
		t.Error("previous sink should be closed on reload")
	}
	if sinks[1].Closed() || sinks[1].Playing() {
		t.Error("new sink should be open and paused")
	}
}

func TestLoadFailureLeavesControllerEmpty(t *testing.T) {
	c, backend, _ := newTestController(t)

	_ = c.Load("a.wav", 5000)
	_ = c.Play()
	query(t, c)

	// The silent variant reports nothing to the caller.
	if err := c.Load("missing.wav", 1000); err != nil {
		t.Fatalf("Load() should only fail on a closed channel, got %v", err)
	}
	st := query(t, c)
	if st.IsPlaying || st.PositionMS != 0 || st.DurationMS != 0 {
		t.Errorf("state after failed load = %+v, want empty", st)
	}
	if !c.IsFinished() {
		t.Error("IsFinished() should be true after a failed load")
	}
	if !backend.LastSink().Closed() {
		t.Error("previous sink should be released even when the new load fails")
	}

	ctx := context.Background()
	if err := c.LoadSync(ctx, "missing.wav", 1000); !errors.Is(err, audio.ErrFileOpen) {
		t.Errorf("LoadSync() = %v, want ErrFileOpen", err)
	}

	backend.FailOpen("busy.wav", &audio.Error{Code: audio.ErrorCodeDevice, Path: "busy.wav"})
	if err := c.LoadSync(ctx, "busy.wav", 1000); !errors.Is(err, audio.ErrDevice) {
		t.Errorf("LoadSync() = %v, want ErrDevice", err)
	}

	if err := c.LoadSync(ctx, "b.wav", 2000); err != nil {
		t.Errorf("LoadSync() unexpected error: %v", err)
	}
	if st := query(t, c); st.DurationMS != 2000 {
		t.Errorf("duration after successful LoadSync = %d", st.DurationMS)
	}
}

func TestIsFinishedFollowsSink(t *testing.T) {
	c, backend, clock := newTestController(t)

	_ = c.Load("b.wav", 2000)
	_ = c.Play()
	query(t, c)

	clock.Advance(time.Second)
	if c.IsFinished() {
		t.Fatal("IsFinished() should be false with audio remaining")
	}

	clock.Advance(1500 * time.Millisecond)
	if !c.IsFinished() {
		t.Fatal("IsFinished() should be true once the source is exhausted")
	}

	// The tick notices exhaustion and stops the clock without an event.
	st := waitFor(t, c, func(st AudioState) bool { return !st.IsPlaying })
	clock.Advance(time.Second)
	if later := query(t, c); later.PositionMS != st.PositionMS {
		t.Errorf("position moved after finish: %d -> %d", st.PositionMS, later.PositionMS)
	}
	if backend.LastSink().Closed() {
		t.Error("finishing must not release the sink")
	}
}

func TestPositionIsNotClampedToDuration(t *testing.T) {
	c, backend, clock := newTestController(t)

	// Declared duration shorter than the media.
	_ = c.Load("a.wav", 1000)
	_ = c.Play()
	query(t, c)
	clock.Advance(3 * time.Second)

	st := query(t, c)
	if st.PositionMS != 3000 || st.DurationMS != 1000 {
		t.Errorf("state = %+v, want position 3000 past duration 1000", st)
	}
	backend.LastSink().Drain()
	waitFor(t, c, func(st AudioState) bool { return !st.IsPlaying })
}

func TestStatePublishedOnTick(t *testing.T) {
	c, _, clock := newTestController(t)

	_ = c.Load("a.wav", 5000)
	_ = c.Play()
	query(t, c)
	clock.Advance(750 * time.Millisecond)

	st := waitFor(t, c, func(st AudioState) bool { return st.PositionMS == 750 })
	if !st.IsPlaying || st.DurationMS != 5000 {
		t.Errorf("published state = %+v", st)
	}
}

// blockingBackend never returns from Open until released.
type blockingBackend struct {
	release chan struct{}
}

func (b *blockingBackend) Open(string, float64, float64) (audio.Sink, error) {
	<-b.release
	return nil, errors.New("released")
}

func TestIsFinishedTimesOutAsFinished(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	c := New(backend, WithLogger(quietLogger()), WithFinishTimeout(20*time.Millisecond))
	defer func() {
		close(backend.release)
		_ = c.Close()
	}()

	_ = c.Load("slow.wav", 1000)

	start := time.Now()
	if !c.IsFinished() {
		t.Error("IsFinished() should default to true when the loop does not answer")
	}
	if waited := time.Since(start); waited > time.Second {
		t.Errorf("IsFinished() blocked for %v", waited)
	}

	// State never waits on the loop either.
	if st := c.State(); st.IsPlaying {
		t.Errorf("unexpected state %+v", st)
	}
}

func TestCallsDoNotWaitOnBusyLoop(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	c := New(backend,
		WithLogger(quietLogger()),
		WithFinishTimeout(20*time.Millisecond),
		WithQueueSize(1),
	)

	// The first load parks the loop inside Open; everything after it queues
	// up well past the initial capacity.
	_ = c.Load("slow.wav", 1000)
	_ = c.Load("slower.wav", 1000)

	sent := make(chan struct{})
	go func() {
		defer close(sent)
		for i := 0; i < 500; i++ {
			c.SetSpeed(1.5)
			c.SetVolume(0.5)
			_ = c.Play()
			_ = c.Pause()
		}
	}()
	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("sends blocked while the loop was busy")
	}

	finished := make(chan bool, 1)
	start := time.Now()
	go func() { finished <- c.IsFinished() }()
	select {
	case ok := <-finished:
		if !ok {
			t.Error("IsFinished() should default to true when the loop does not answer")
		}
		if waited := time.Since(start); waited > time.Second {
			t.Errorf("IsFinished() took %v", waited)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("IsFinished() blocked while the loop was busy")
	}

	close(backend.release)
	closed := make(chan struct{})
	go func() {
		_ = c.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not return after the loop was released")
	}

	// Every queued command was still applied in order.
	st := c.State()
	if st.Speed != 1.5 || st.Volume != 0.5 {
		t.Errorf("queued settings lost: %+v", st)
	}
	if st.IsPlaying {
		t.Errorf("failed loads should leave nothing playing: %+v", st)
	}
}

func TestMailboxKeepsOrder(t *testing.T) {
	m := newMailbox(1)
	for i := 0; i < 10; i++ {
		if !m.push(setSpeedCmd{speed: float64(i)}) {
			t.Fatalf("push %d refused on open mailbox", i)
		}
	}

	select {
	case <-m.ready:
	default:
		t.Fatal("ready should hold a token after push")
	}

	cmds := m.drain()
	if len(cmds) != 10 {
		t.Fatalf("drain() returned %d commands, want 10", len(cmds))
	}
	for i, cmd := range cmds {
		if got := cmd.(setSpeedCmd).speed; got != float64(i) {
			t.Errorf("command %d has speed %v", i, got)
		}
	}
	if rest := m.drain(); len(rest) != 0 {
		t.Errorf("second drain() returned %d commands", len(rest))
	}

	if !m.close() {
		t.Error("first close() should report true")
	}
	if m.close() {
		t.Error("second close() should report false")
	}
	if m.push(playCmd{}) {
		t.Error("push after close should be refused")
	}
}

func TestClosedController(t *testing.T) {
	c, backend, _ := newTestController(t)

	_ = c.Load("a.wav", 5000)
	_ = c.Play()
	query(t, c)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	select {
	case <-c.Done():
	default:
		t.Fatal("Done() should be closed after Close")
	}
	if !backend.LastSink().Closed() {
		t.Error("Close should release the sink")
	}

	for name, fn := range map[string]func() error{
		"Load":  func() error { return c.Load("a.wav", 1) },
		"Play":  c.Play,
		"Pause": c.Pause,
		"Stop":  c.Stop,
	} {
		if err := fn(); !errors.Is(err, ErrChannelClosed) {
			t.Errorf("%s after Close = %v, want ErrChannelClosed", name, err)
		}
	}

	c.SetSpeed(1.5)
	c.SetVolume(0.5)
	if !c.IsFinished() {
		t.Error("IsFinished() should be true on a closed controller")
	}
	if _, err := c.QueryState(context.Background()); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("QueryState() = %v, want ErrChannelClosed", err)
	}
	if err := c.LoadSync(context.Background(), "a.wav", 1); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("LoadSync() = %v, want ErrChannelClosed", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() unexpected error: %v", err)
	}
}

func TestCloseHandlesQueuedCommands(t *testing.T) {
	c, backend, _ := newTestController(t)

	_ = c.Load("a.wav", 5000)
	_ = c.Play()
	_ = c.Close()

	sink := backend.LastSink()
	if sink == nil {
		t.Fatal("load queued before Close should have been handled")
	}
	plays, _ := sink.Counts()
	if plays != 1 {
		t.Errorf("play queued before Close should have been handled, plays=%d", plays)
	}
}

func TestConcurrentCallersSeeOnlyPublishedStates(t *testing.T) {
	c, _, clock := newTestController(t)
	_ = c.Load("a.wav", 5000)

	speeds := []float64{0.5, 1.0, 1.5, 2.0}
	volumes := []float64{0.0, 0.25, 0.5, 1.0}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.SetSpeed(speeds[(i+w)%len(speeds)])
				c.SetVolume(volumes[(i*w)%len(volumes)])
				if i%2 == 0 {
					_ = c.Play()
				} else {
					_ = c.Pause()
				}
				clock.Advance(time.Millisecond)
			}
		}(w)
	}

	errs := make(chan string, 1)
	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			st := c.State()
			if !contains(speeds, st.Speed) || !contains(volumes, st.Volume) || st.DurationMS != 5000 && st.DurationMS != 0 {
				select {
				case errs <- "torn or unpublished state":
				default:
				}
				return
			}
		}
	}()

	wg.Wait()
	query(t, c)
	close(stop)
	readers.Wait()

	select {
	case msg := <-errs:
		t.Fatal(msg)
	default:
	}
}

// TestEndToEnd walks load, play, pause and stop the way the reader does.
func TestEndToEnd(t *testing.T) {
	c, _, clock := newTestController(t)

	if err := c.Load("a.wav", 5000); err != nil {
		t.Fatal(err)
	}
	if err := c.Play(); err != nil {
		t.Fatal(err)
	}
	query(t, c)

	clock.Advance(time.Second)
	st := waitFor(t, c, func(st AudioState) bool { return st.PositionMS >= 1000 })
	if !st.IsPlaying || st.DurationMS != 5000 || st.PositionMS > 1100 {
		t.Fatalf("playing state = %+v", st)
	}

	_ = c.Pause()
	paused := query(t, c)
	if paused.IsPlaying {
		t.Fatal("expected paused")
	}
	clock.Advance(time.Second)
	if st := c.State(); st.PositionMS != paused.PositionMS {
		t.Fatalf("paused position moved: %d -> %d", paused.PositionMS, st.PositionMS)
	}

	_ = c.Stop()
	stopped := query(t, c)
	if stopped.PositionMS != 0 || stopped.IsPlaying {
		t.Fatalf("stopped state = %+v", stopped)
	}
}

func contains(vals []float64, v float64) bool {
	if v == 1.0 {
		// default before the first set
		return true
	}
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}
