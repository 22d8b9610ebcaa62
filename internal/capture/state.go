package capture

// State is the lifecycle position of a Session
type State int32

const (
	Idle State = iota
	Recording
	Stopping
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	case Closed:
		return "closed"
	}
	return "unknown"
}
