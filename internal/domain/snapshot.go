package domain

import "time"

// Snapshot is one poll's reading of the session. Nil pointers mean unknown.
type Snapshot struct {
	WallTime     time.Time
	Monotonic    time.Duration
	IdleSeconds  *int
	Locked       *bool
	Inhibited    *bool
	ProviderMeta map[string]any
}

// MetaString returns one provider metadata value when it is a string.
func (s Snapshot) MetaString(key string) string {
	if s.ProviderMeta == nil {
		return ""
	}
	v, _ := s.ProviderMeta[key].(string)
	return v
}

// ClassifierConfig holds the settings the classifier reads.
type ClassifierConfig struct {
	ThresholdSeconds         int
	TreatInhibitorAsActivity bool
}

// Totals holds per-state seconds derived from blocks.
type Totals struct {
	ActivitySeconds int64
	BreakSeconds    int64
}

// Ptr returns a pointer to v; handy for building snapshots.
func Ptr[T any](v T) *T {
	return &v
}
