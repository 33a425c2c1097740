package domain

import (
	"fmt"
	"strings"
)

// State tags one time interval as activity or break.
type State string

// State values. No other value is ever persisted.
const (
	StateActivity State = "activity"
	StateBreak    State = "break"
)

// ParseState parses a persisted state tag.
func ParseState(raw string) (State, error) {
	switch State(strings.TrimSpace(strings.ToLower(raw))) {
	case StateActivity:
		return StateActivity, nil
	case StateBreak:
		return StateBreak, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidState, raw)
	}
}

// Valid reports whether the state is one of the two known tags.
func (s State) Valid() bool {
	switch s {
	case StateActivity, StateBreak:
		return true
	default:
		return false
	}
}

// String returns the persisted tag.
func (s State) String() string {
	return string(s)
}

// mustKnownState panics on a value that bypassed ParseState.
func mustKnownState(s State) {
	if !s.Valid() {
		panic(fmt.Sprintf("domain: unknown state %q", string(s)))
	}
}
