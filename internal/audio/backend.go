package audio

// Backend opens audio files onto an output device.
type Backend interface {
	// Open opens and decodes the file at path, binds it to an output voice
	// and returns it paused at the given speed and volume. Failures are
	// reported as *Error.
	Open(path string, speed, volume float64) (Sink, error)
}

// Sink is a single loaded audio source bound to an output voice.
type Sink interface {
	// Play starts or resumes playback.
	Play()

	// Pause freezes playback at the current position.
	Pause()

	// SetSpeed changes the playback rate (1.0 is normal speed).
	SetSpeed(speed float64)

	// SetVolume changes the output level (0.0 to 1.0).
	SetVolume(volume float64)

	// Empty reports whether no audio remains queued for output.
	Empty() bool

	// Close stops playback and releases the voice and the file.
	Close() error
}
