package domain

import (
	"testing"
	"time"
)

// snapshotAt builds one snapshot with explicit idle/lock/inhibitor readings.
func snapshotAt(now time.Time, idle *int, locked, inhibited *bool) Snapshot {
	return Snapshot{
		WallTime:    now,
		IdleSeconds: idle,
		Locked:      locked,
		Inhibited:   inhibited,
	}
}

func TestClassifyDecisionOrder(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	cfg := ClassifierConfig{ThresholdSeconds: 300, TreatInhibitorAsActivity: true}

	cases := []struct {
		name      string
		idle      *int
		locked    *bool
		inhibited *bool
		cfg       ClassifierConfig
		want      State
	}{
		{name: "locked forces break", idle: Ptr(10), locked: Ptr(true), cfg: cfg, want: StateBreak},
		{name: "lock overrides zero idle", idle: Ptr(0), locked: Ptr(true), cfg: cfg, want: StateBreak},
		{name: "lock overrides inhibitor", idle: Ptr(900), locked: Ptr(true), inhibited: Ptr(true), cfg: cfg, want: StateBreak},
		{name: "unknown idle fails open", locked: Ptr(false), cfg: cfg, want: StateActivity},
		{name: "unknown idle and unknown lock", cfg: cfg, want: StateActivity},
		{name: "under threshold", idle: Ptr(10), locked: Ptr(false), cfg: cfg, want: StateActivity},
		{name: "exactly at threshold", idle: Ptr(300), locked: Ptr(false), inhibited: Ptr(false), cfg: cfg, want: StateActivity},
		{name: "one past threshold", idle: Ptr(301), locked: Ptr(false), inhibited: Ptr(false), cfg: cfg, want: StateBreak},
		{name: "inhibited counts as activity", idle: Ptr(500), locked: Ptr(false), inhibited: Ptr(true), cfg: cfg, want: StateActivity},
		{
			name: "inhibitor ignored when disabled", idle: Ptr(500), locked: Ptr(false), inhibited: Ptr(true),
			cfg: ClassifierConfig{ThresholdSeconds: 300}, want: StateBreak,
		},
		{name: "unknown inhibitor is not activity", idle: Ptr(500), locked: Ptr(false), cfg: cfg, want: StateBreak},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(snapshotAt(now, tc.idle, tc.locked, tc.inhibited), tc.cfg)
			if got != tc.want {
				t.Fatalf("Classify() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBreakBoundary(t *testing.T) {
	t0 := time.Date(2026, 2, 21, 9, 0, 0, 0, time.UTC)
	cfg := ClassifierConfig{ThresholdSeconds: 300}

	boundary, ok := BreakBoundary(snapshotAt(t0.Add(310*time.Second), Ptr(310), Ptr(false), Ptr(false)), cfg)
	if !ok {
		t.Fatal("expected boundary for known idle time")
	}
	if !boundary.Equal(t0.Add(300 * time.Second)) {
		t.Fatalf("unexpected boundary %s", boundary)
	}

	if _, ok := BreakBoundary(snapshotAt(t0, nil, nil, nil), cfg); ok {
		t.Fatal("expected no boundary when idle time is unknown")
	}
}

func TestParseState(t *testing.T) {
	for raw, want := range map[string]State{"activity": StateActivity, "BREAK": StateBreak, " break ": StateBreak} {
		got, err := ParseState(raw)
		if err != nil {
			t.Fatalf("ParseState(%q) error = %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseState(%q) = %q, want %q", raw, got, want)
		}
	}
	if _, err := ParseState("idle"); err == nil {
		t.Fatal("expected error for unknown state")
	}
}
