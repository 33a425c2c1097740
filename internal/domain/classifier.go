package domain

import "time"

// Classify maps one snapshot to a state. First match wins:
// locked, unknown idle (fail-open), idle within threshold, inhibited idle, break.
func Classify(snapshot Snapshot, cfg ClassifierConfig) State {
	if snapshot.Locked != nil && *snapshot.Locked {
		return StateBreak
	}
	if snapshot.IdleSeconds == nil {
		return StateActivity
	}
	if *snapshot.IdleSeconds <= cfg.ThresholdSeconds {
		return StateActivity
	}
	if cfg.TreatInhibitorAsActivity && snapshot.Inhibited != nil && *snapshot.Inhibited {
		return StateActivity
	}
	return StateBreak
}

// BreakBoundary returns the retroactive activity/break cut for an ACTIVITY->BREAK switch:
// the last input moment plus the threshold. ok is false when idle time is unknown.
func BreakBoundary(snapshot Snapshot, cfg ClassifierConfig) (time.Time, bool) {
	if snapshot.IdleSeconds == nil {
		return time.Time{}, false
	}
	lastActive := snapshot.WallTime.Add(-time.Duration(*snapshot.IdleSeconds) * time.Second)
	return lastActive.Add(time.Duration(cfg.ThresholdSeconds) * time.Second), true
}
