package executor

// Status is the state of one sandboxed execution.
type Status int

const (
	Ready Status = iota
	Running
	Completed
	TimedOut
	Crashed
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case TimedOut:
		return "timed-out"
	case Crashed:
		return "crashed"
	}
	return "unknown"
}
