package stream

// State is the lifecycle state of a Conn.
type State int32

const (
	StateInitialising State = iota
	StateStreaming
	StateReconnecting
	StateExiting
)

func (s State) String() string {
	switch s {
	case StateInitialising:
		return "initialising"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateExiting:
		return "exiting"
	default:
		return "unknown"
	}
}
