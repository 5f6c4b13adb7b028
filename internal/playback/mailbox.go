package playback

import "sync"

// mailbox is the unbounded command queue between the handles and the loop.
// push never waits on the loop, so a loop stuck in Backend.Open cannot stall
// callers.
type mailbox struct {
	mu     sync.Mutex
	queue  []command
	closed bool

	// ready holds a token whenever queue may be non-empty.
	ready chan struct{}
}

func newMailbox(capacity int) *mailbox {
	return &mailbox{
		queue: make([]command, 0, capacity),
		ready: make(chan struct{}, 1),
	}
}

// push appends cmd. It reports false once the mailbox is closed.
func (m *mailbox) push(cmd command) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.queue = append(m.queue, cmd)
	select {
	case m.ready <- struct{}{}:
	default:
	}
	return true
}

// drain takes every queued command in arrival order.
func (m *mailbox) drain() []command {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmds := m.queue
	m.queue = nil
	return cmds
}

// close refuses further pushes. It reports false if already closed.
func (m *mailbox) close() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.closed = true
	return true
}
