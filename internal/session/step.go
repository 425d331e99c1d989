package session

import "fmt"

// stepState tracks one negotiation step through its lifetime.
type stepState int

const (
	stepPending stepState = iota
	stepRunning
	stepCompleted
	stepFailed
)

func (s stepState) String() string {
	switch s {
	case stepPending:
		return "pending"
	case stepRunning:
		return "running"
	case stepCompleted:
		return "completed"
	case stepFailed:
		return "failed"
	}
	return fmt.Sprintf("stepState(%d)", int(s))
}

// step is one asynchronous engine interaction. Steps of a session run one at
// a time, in queue order: work on the executor, then done or onFail on the
// coordination goroutine. A later step never observes the engine before an
// earlier one has completed.
type step struct {
	name  string
	state stepState
	err   error

	// work runs on the executor against the session's peer.
	work func(p Peer) error
	// done runs after work succeeded.
	done func()
	// onFail replaces the default failure handling (report and drop the
	// remaining queue).
	onFail func(err error)
	// stale runs when the session was closed while work was in flight.
	stale func()
}
