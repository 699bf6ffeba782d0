package views

import "fmt"

// GuardState is the state of the switch guard.
type GuardState string

const (
	StateIdle          GuardState = "idle"
	StatePendingSwitch GuardState = "pending_switch"
)

// Resolution is one way out of a pending switch.
type Resolution string

const (
	ResolveSave    Resolution = "save"
	ResolveDiscard Resolution = "discard"
	ResolveCancel  Resolution = "cancel"
)

// Resolutions lists what a pending switch offers, in presentation order.
func Resolutions() []Resolution {
	return []Resolution{ResolveSave, ResolveDiscard, ResolveCancel}
}

// ParseResolution validates a resolution name.
func ParseResolution(s string) (Resolution, error) {
	for _, r := range Resolutions() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrBadResolution)
}

// Guard holds the switch-guard state. Target is set only while a switch is
// pending.
type Guard struct {
	State  GuardState `json:"state"`
	Target string     `json:"target,omitempty"`
}

// Pending reports whether a switch waits for a resolution.
func (g Guard) Pending() bool {
	return g.State == StatePendingSwitch
}

// Options returns the resolutions available in the current state.
func (g Guard) Options() []Resolution {
	if !g.Pending() {
		return nil
	}
	return Resolutions()
}

func idle() Guard {
	return Guard{State: StateIdle}
}

func pending(target string) Guard {
	return Guard{State: StatePendingSwitch, Target: target}
}
