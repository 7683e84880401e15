package driver

import (
	"sync"
	"time"
)

// Command is a robot-frame velocity command, stamped on arrival.
type Command struct {
	Linear  float64 // m/s
	Angular float64 // rad/s
}

// mailbox is a single-slot latest-wins buffer between the transport callback
// and the control loop. There is no queue: a new arrival overwrites the
// pending value, and the loop drains only the latest each tick.
type mailbox struct {
	mu  sync.Mutex
	cmd Command
	at  time.Time
	set bool
}

func (m *mailbox) put(cmd Command, at time.Time) {
	m.mu.Lock()
	m.cmd, m.at, m.set = cmd, at, true
	m.mu.Unlock()
}

func (m *mailbox) latest() (Command, time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cmd, m.at, m.set
}
