package installer

// State identifies one phase of the installation state machine.
type State int

// Installation phases, in the order they are normally traversed.
// Cancelled and Aborted are terminal alternatives to Done.
const (
	StateInit State = iota
	StatePrecondition
	StateTargetAbsent
	StateTargetPresent
	StateVersionCheck
	StateConfirm
	StateExtract
	StateFinalize
	StateDone
	StateCancelled
	StateAborted
)

// String returns the phase name for logs.
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StatePrecondition:
		return "PRECONDITION"
	case StateTargetAbsent:
		return "TARGET_ABSENT"
	case StateTargetPresent:
		return "TARGET_PRESENT"
	case StateVersionCheck:
		return "VERSION_CHECK"
	case StateConfirm:
		return "CONFIRM"
	case StateExtract:
		return "EXTRACT"
	case StateFinalize:
		return "FINALIZE"
	case StateDone:
		return "DONE"
	case StateCancelled:
		return "CANCELLED"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}
