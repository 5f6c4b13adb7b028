// Package audio provides the playback engine used by the playback controller:
// file decoding with beep, a process-wide oto output context, and paused
// sinks that can be resumed, re-speeded and re-leveled while they play.
package audio
