package present

// State is a position in the manual check panel lifecycle.
type State int

const (
	StateIdle State = iota
	StateChecking
	StateSafe
	StateThreat
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateSafe:
		return "safe"
	case StateThreat:
		return "threat"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends an activation.
func (s State) Terminal() bool {
	return s == StateSafe || s == StateThreat || s == StateError
}

// View is what the result panel displays. Color is empty when the panel keeps
// its current styling.
type View struct {
	State    State
	Headline string
	Detail   string
	Color    string
}

// CheckingView is shown while a request is in flight.
func CheckingView() View {
	return View{State: StateChecking, Headline: CheckingMessage}
}

// ErrorView is shown when the check could not be completed.
func ErrorView() View {
	return View{State: StateError, Headline: PanelErrorMessage}
}
