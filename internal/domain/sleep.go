package domain

import "time"

// SleepKind names a system sleep phase.
type SleepKind string

// SleepKind values.
const (
	SleepSuspend SleepKind = "suspend"
	SleepResume  SleepKind = "resume"
)

// SleepEvent is one suspend or resume notification.
type SleepEvent struct {
	Kind SleepKind
	When time.Time
}
