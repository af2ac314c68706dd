package reader

// State is the lifecycle position of a single channel.
type State string

const (
	StateEmpty                 State = "EMPTY"
	StateDetected              State = "DETECTED"
	StateConfiguring           State = "CONFIGURING"
	StateWaitingTemp           State = "WAITING_TEMP"
	StateIncubating            State = "INCUBATING"
	StateIncubationAlert       State = "INCUBATION_ALERT"
	StateReading               State = "READING"
	StateResult                State = "RESULT"
	StateAwaitingConfirmation  State = "AWAITING_CONFIRMATION"
	StateWaitingForSwap        State = "WAITING_FOR_SWAP"
	StateReadyForTestN         State = "READY_FOR_TEST_N"
	StateComplete              State = "COMPLETE"
	StateError                 State = "ERROR"
	StateErrorTypeMismatch     State = "ERROR_TYPE_MISMATCH"
	StateErrorUsedConfirmation State = "ERROR_USED_CONFIRMATION"
	StateErrorUsed             State = "ERROR_USED"
)

// AllStates lists every state in pipeline order.
var AllStates = []State{
	StateEmpty,
	StateDetected,
	StateConfiguring,
	StateWaitingTemp,
	StateIncubating,
	StateIncubationAlert,
	StateReading,
	StateResult,
	StateAwaitingConfirmation,
	StateWaitingForSwap,
	StateReadyForTestN,
	StateComplete,
	StateError,
	StateErrorTypeMismatch,
	StateErrorUsedConfirmation,
	StateErrorUsed,
}

func (s State) String() string { return string(s) }

// Processing reports whether a countdown drives the state.
func (s State) Processing() bool {
	return s == StateWaitingTemp || s == StateIncubating || s == StateReading
}

// IsError reports whether the state is one of the error sub-states.
func (s State) IsError() bool {
	switch s {
	case StateError, StateErrorTypeMismatch, StateErrorUsed, StateErrorUsedConfirmation:
		return true
	}
	return false
}

// CanInsertCassette reports whether a cassette may be inserted in state s.
func CanInsertCassette(s State) bool {
	return s == StateEmpty || s == StateWaitingForSwap || s == StateIncubationAlert
}

// CanRemoveCassette reports whether a present cassette may be pulled in state s.
func CanRemoveCassette(s State, cassettePresent bool) bool {
	return cassettePresent && s != StateEmpty
}
