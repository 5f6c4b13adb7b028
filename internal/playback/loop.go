package playback

import (
	"math"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/readaloud/internal/audio"
)

// loop is the state owned by the controller goroutine. Nothing else may
// touch it.
type loop struct {
	backend audio.Backend
	state   *snapshot
	now     func() time.Time
	logger  *log.Logger

	sink        audio.Sink // nil when nothing is loaded
	resumedAt   time.Time  // non-zero iff playing
	pausedAccum time.Duration
	duration    time.Duration
	speed       float64
	volume      float64
	playing     bool

	// traceTick throttles the per-tick debug line.
	traceTick rate.Sometimes
}

func newLoop(backend audio.Backend, state *snapshot, now func() time.Time, logger *log.Logger) *loop {
	def := defaultState()
	return &loop{
		backend:   backend,
		state:     state,
		now:       now,
		logger:    logger,
		speed:     def.Speed,
		volume:    def.Volume,
		traceTick: rate.Sometimes{Interval: time.Second},
	}
}

func (l *loop) handle(cmd command) {
	switch cmd := cmd.(type) {
	case loadCmd:
		err := l.load(cmd.path, cmd.durationMS)
		if cmd.reply != nil {
			cmd.reply <- err
		}

	case playCmd:
		if l.sink == nil || l.playing {
			return
		}
		l.sink.Play()
		l.resumedAt = l.now()
		l.playing = true

	case pauseCmd:
		if l.sink == nil || !l.playing {
			return
		}
		l.sink.Pause()
		l.freeze()

	case stopCmd:
		l.release()

	case setSpeedCmd:
		if math.IsNaN(cmd.speed) {
			return
		}
		l.speed = clamp(cmd.speed, MinSpeed, MaxSpeed)
		if l.sink != nil {
			l.sink.SetSpeed(l.speed)
		}

	case setVolumeCmd:
		if math.IsNaN(cmd.volume) {
			return
		}
		l.volume = clamp(cmd.volume, MinVolume, MaxVolume)
		if l.sink != nil {
			l.sink.SetVolume(l.volume)
		}

	case getStateCmd:
		select {
		case cmd.reply <- l.current():
		default:
		}
		return

	case isFinishedCmd:
		select {
		case cmd.reply <- l.finished():
		default:
		}
		return
	}

	l.publish()
}

// load swaps in a new source. On failure the controller is left empty.
func (l *loop) load(path string, durationMS uint64) error {
	l.release()

	sink, err := l.backend.Open(path, l.speed, l.volume)
	if err != nil {
		l.logger.Error("Failed to load audio", "path", path, "err", err)
		return err
	}

	l.sink = sink
	l.duration = time.Duration(durationMS) * time.Millisecond
	l.logger.Debug("Audio loaded", "path", path, "duration", l.duration)
	return nil
}

// release drops the current source and resets all position bookkeeping.
func (l *loop) release() {
	if l.sink != nil {
		if err := l.sink.Close(); err != nil {
			l.logger.Warn("Failed to release audio sink", "err", err)
		}
		l.sink = nil
	}
	l.resumedAt = time.Time{}
	l.pausedAccum = 0
	l.duration = 0
	l.playing = false
}

// freeze folds the time since the last resume into the paused position.
func (l *loop) freeze() {
	if !l.resumedAt.IsZero() {
		l.pausedAccum += l.now().Sub(l.resumedAt)
		l.resumedAt = time.Time{}
	}
	l.playing = false
}

func (l *loop) onTick() {
	if l.sink != nil && l.playing && l.sink.Empty() {
		l.freeze()
		l.logger.Debug("Audio finished", "position", l.current().PositionMS)
	}
	l.publish()

	if l.playing {
		l.traceTick.Do(func() {
			st := l.state.load()
			l.logger.Debug("Playing", "position", st.PositionMS, "duration", st.DurationMS)
		})
	}
}

func (l *loop) finished() bool {
	return l.sink == nil || l.sink.Empty()
}

// current derives the observable state from the bookkeeping.
func (l *loop) current() AudioState {
	elapsed := l.pausedAccum
	if l.playing && !l.resumedAt.IsZero() {
		elapsed += l.now().Sub(l.resumedAt)
	}

	return AudioState{
		IsPlaying:  l.playing,
		PositionMS: uint64(elapsed.Seconds() * l.speed * 1000),
		DurationMS: uint64(l.duration.Milliseconds()),
		Speed:      l.speed,
		Volume:     l.volume,
	}
}

func (l *loop) publish() {
	l.state.store(l.current())
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
