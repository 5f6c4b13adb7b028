package playback

import "errors"

// ErrChannelClosed is returned when a command cannot be delivered because
// the controller loop has exited.
var ErrChannelClosed = errors.New("playback controller is closed")
