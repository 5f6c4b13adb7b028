package playback

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/audio"
)

const (
	// DefaultTick is how long the loop waits for a command before it
	// republishes the snapshot.
	DefaultTick = 50 * time.Millisecond

	// DefaultFinishTimeout bounds how long IsFinished waits for a reply.
	DefaultFinishTimeout = 100 * time.Millisecond

	// DefaultQueueSize is the initial command queue capacity. The queue
	// grows past it.
	DefaultQueueSize = 256
)

// Controller is the handle callers use to drive playback. It is safe for
// concurrent use; create one per process and share it.
type Controller struct {
	box   *mailbox
	state *snapshot

	quit chan struct{}
	done chan struct{}

	tick          time.Duration
	finishTimeout time.Duration
	queueSize     int
	now           func() time.Time
	logger        *log.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithTick sets the republish interval.
func WithTick(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.tick = d
		}
	}
}

// WithFinishTimeout sets how long IsFinished waits before assuming the
// stream is finished.
func WithFinishTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.finishTimeout = d
		}
	}
}

// WithQueueSize sets the initial command queue capacity.
func WithQueueSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithClock replaces the wall clock used for position bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger for load failures and loop diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New starts the controller loop on backend and returns its handle. The
// loop runs until Close.
func New(backend audio.Backend, opts ...Option) *Controller {
	c := &Controller{
		state:         &snapshot{state: defaultState()},
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
		tick:          DefaultTick,
		finishTimeout: DefaultFinishTimeout,
		queueSize:     DefaultQueueSize,
		now:           time.Now,
		logger:        log.Default().WithPrefix("playback"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.box = newMailbox(c.queueSize)

	l := newLoop(backend, c.state, c.now, c.logger)
	go c.run(l)

	return c
}

// send enqueues cmd without waiting on the loop, failing only if the
// controller is closed.
func (c *Controller) send(cmd command) error {
	if !c.box.push(cmd) {
		return ErrChannelClosed
	}
	return nil
}

// Load replaces the current source with the file at path. Media errors are
// logged by the loop and leave the controller empty; use LoadSync to
// observe them.
func (c *Controller) Load(path string, durationMS uint64) error {
	return c.send(loadCmd{path: path, durationMS: durationMS})
}

// LoadSync is Load that waits for the loop to open the file and returns the
// media error, if any.
func (c *Controller) LoadSync(ctx context.Context, path string, durationMS uint64) error {
	reply := make(chan error, 1)
	if err := c.send(loadCmd{path: path, durationMS: durationMS, reply: reply}); err != nil {
		return err
	}

	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrChannelClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Play starts or resumes the loaded source.
func (c *Controller) Play() error {
	return c.send(playCmd{})
}

// Pause freezes playback at the current position.
func (c *Controller) Pause() error {
	return c.send(pauseCmd{})
}

// Stop releases the source and resets the position to zero.
func (c *Controller) Stop() error {
	return c.send(stopCmd{})
}

// SetSpeed sets the playback speed, clamped to [MinSpeed, MaxSpeed].
func (c *Controller) SetSpeed(speed float64) {
	_ = c.send(setSpeedCmd{speed: speed})
}

// SetVolume sets the volume, clamped to [MinVolume, MaxVolume].
func (c *Controller) SetVolume(volume float64) {
	_ = c.send(setVolumeCmd{volume: volume})
}

// State returns the last published state without waiting on the loop.
func (c *Controller) State() AudioState {
	return c.state.load()
}

// QueryState asks the loop for the state at this instant.
func (c *Controller) QueryState(ctx context.Context) (AudioState, error) {
	reply := make(chan AudioState, 1)
	if err := c.send(getStateCmd{reply: reply}); err != nil {
		return AudioState{}, err
	}

	select {
	case st := <-reply:
		return st, nil
	case <-c.done:
		select {
		case st := <-reply:
			return st, nil
		default:
			return AudioState{}, ErrChannelClosed
		}
	case <-ctx.Done():
		return AudioState{}, ctx.Err()
	}
}

// IsFinished reports whether nothing is loaded or the loaded source has
// played out. An unreachable or slow loop counts as finished.
func (c *Controller) IsFinished() bool {
	t := time.NewTimer(c.finishTimeout)
	defer t.Stop()

	reply := make(chan bool, 1)
	if err := c.send(isFinishedCmd{reply: reply}); err != nil {
		return true
	}

	select {
	case finished := <-reply:
		return finished
	case <-t.C:
		return true
	}
}

// Close stops the loop and releases the audio device. Commands already
// queued are still handled; later sends fail with ErrChannelClosed.
func (c *Controller) Close() error {
	if c.box.close() {
		close(c.quit)
	}
	<-c.done
	return nil
}

// Done is closed once the loop has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// run is the loop goroutine.
func (c *Controller) run(l *loop) {
	defer close(c.done)
	defer l.release()

	timer := time.NewTimer(c.tick)
	defer timer.Stop()

	for {
		select {
		case <-c.box.ready:
			for _, cmd := range c.box.drain() {
				l.handle(cmd)
			}
		case <-timer.C:
			l.onTick()
		case <-c.quit:
			// The mailbox is closed by now; finish what was queued.
			for _, cmd := range c.box.drain() {
				l.handle(cmd)
			}
			return
		}
		timer.Reset(c.tick)
	}
}
