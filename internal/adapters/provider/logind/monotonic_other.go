//go:build !linux

package logind

import "time"

// monotonicNow is unavailable off linux; logind does not exist there.
func monotonicNow() (time.Duration, bool) {
	return 0, false
}
