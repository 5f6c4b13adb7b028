// Package playback implements the audio playback controller: one goroutine
// owns the audio sink and consumes commands in order, while callers read a
// mutex-guarded snapshot of the latest published AudioState.
//
// Position is derived from wall-clock deltas (time paused-accumulated plus
// time since the last resume, scaled by speed), never counted up by the tick
// loop. The snapshot is republished on every tick and after every command
// that changes playback, so State may lag the loop by at most one tick.
package playback
