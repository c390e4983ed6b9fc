package orchestrator

// State is the bootstrap run state.
type State int32

const (
	Idle State = iota
	LoadingConfig
	ResolvingIdentifier
	Compiling
	Executing
	Ready
	Failed
)

var stateNames = [...]string{
	Idle:                "Idle",
	LoadingConfig:       "LoadingConfig",
	ResolvingIdentifier: "ResolvingIdentifier",
	Compiling:           "Compiling",
	Executing:           "Executing",
	Ready:               "Ready",
	Failed:              "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether a run in this state is finished.
func (s State) Terminal() bool {
	return s == Ready || s == Failed
}

// Transition is reported to observers on every state change.
type Transition struct {
	RunID      string
	Generation uint64
	From       State
	To         State
}
