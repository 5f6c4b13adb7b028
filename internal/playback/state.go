package playback

import "sync"

// AudioState is the observable playback state.
type AudioState struct {
	IsPlaying  bool    `json:"is_playing"`
	PositionMS uint64  `json:"position_ms"`
	DurationMS uint64  `json:"duration_ms"`
	Speed      float64 `json:"speed"`
	Volume     float64 `json:"volume"`
}

// Playback limits.
const (
	MinSpeed  = 0.5
	MaxSpeed  = 2.0
	MinVolume = 0.0
	MaxVolume = 1.0
)

func defaultState() AudioState {
	return AudioState{Speed: 1.0, Volume: 1.0}
}

// snapshot is the single-writer mailbox shared between the loop and callers.
// It is written whole and read whole.
type snapshot struct {
	mu    sync.Mutex
	state AudioState
}

func (s *snapshot) load() AudioState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *snapshot) store(st AudioState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
