package playback

// command is one request to the controller loop. Each value is consumed
// exactly once.
type command interface {
	isCommand()
}

type (
	loadCmd struct {
		path       string
		durationMS uint64
		reply      chan error // nil for fire-and-forget loads
	}
	playCmd       struct{}
	pauseCmd      struct{}
	stopCmd       struct{}
	setSpeedCmd   struct{ speed float64 }
	setVolumeCmd  struct{ volume float64 }
	getStateCmd   struct{ reply chan AudioState }
	isFinishedCmd struct{ reply chan bool }
)

func (loadCmd) isCommand()       {}
func (playCmd) isCommand()       {}
func (pauseCmd) isCommand()      {}
func (stopCmd) isCommand()       {}
func (setSpeedCmd) isCommand()   {}
func (setVolumeCmd) isCommand()  {}
func (getStateCmd) isCommand()   {}
func (isFinishedCmd) isCommand() {}
