package mode

import "fmt"

// State is the controller's position in the transition state machine.
type State int

const (
	Local State = iota
	SwitchingToRemote
	Remote
	SwitchingToLocal
)

func (s State) String() string {
	switch s {
	case Local:
		return "local"
	case SwitchingToRemote:
		return "switching_to_remote"
	case Remote:
		return "remote"
	case SwitchingToLocal:
		return "switching_to_local"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Switching reports whether s is one of the transition states.
func (s State) Switching() bool {
	return s == SwitchingToRemote || s == SwitchingToLocal
}

// mode collapses a state to the store that serves reads in it.
func (s State) mode() State {
	switch s {
	case Remote, SwitchingToLocal:
		return Remote
	default:
		return Local
	}
}

// other returns the settled state opposite to s.
func (s State) other() State {
	if s.mode() == Remote {
		return Local
	}
	return Remote
}

// direction labels transitions in logs and metrics.
func direction(to State) string {
	if to == Remote || to == SwitchingToRemote {
		return "to_remote"
	}
	return "to_local"
}
