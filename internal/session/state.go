// Package session orchestrates the capture-queue-worker pipeline: a
// Controller owns the session state machine, one Capture, and one worker per
// session, and accumulates results into a shared Transcript.
package session

// State is the session lifecycle state.
type State int32

const (
	Idle State = iota
	Listening
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}
