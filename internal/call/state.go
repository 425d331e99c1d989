// Package call implements the call lifecycle: who is being called, in which
// role, and which transitions are legal from where.
package call

import "fmt"

// State is the lifecycle state of the (single) call.
type State int

const (
	Idle State = iota
	Calling
	Receiving
	Connecting
	Connected
	// Ending is reserved; every teardown path goes straight back to Idle.
	Ending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Calling:
		return "Calling"
	case Receiving:
		return "Receiving"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Ending:
		return "Ending"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
