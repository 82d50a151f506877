package dispatch

// State is a dispatch state-machine state.
type State int

const (
	StateIdle State = iota
	StateInvoking
	StateClassifyingFailure
	StateBackingOff
	StateSwappingModel
	StateSucceeded
	StateExhaustedRetries
	StateFatalFailure
	// StateAbandoned is entered when the caller's context ends mid-dispatch.
	StateAbandoned
)

var stateNames = map[State]string{
	StateIdle:               "idle",
	StateInvoking:           "invoking",
	StateClassifyingFailure: "classifying_failure",
	StateBackingOff:         "backing_off",
	StateSwappingModel:      "swapping_model",
	StateSucceeded:          "succeeded",
	StateExhaustedRetries:   "exhausted_retries",
	StateFatalFailure:       "fatal_failure",
	StateAbandoned:          "abandoned",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateExhaustedRetries, StateFatalFailure, StateAbandoned:
		return true
	default:
		return false
	}
}

// Transition is reported to Options.OnTransition on every state change.
type Transition struct {
	Key       string
	From      State
	To        State
	Attempt   int
	Responder string
}
