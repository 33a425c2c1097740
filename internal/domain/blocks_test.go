package domain

import (
	"testing"
	"time"
)

// base is a fixed reference time for block tests.
var base = time.Date(2026, 2, 21, 9, 0, 0, 0, time.UTC)

// at returns base shifted by the given number of seconds.
func at(secs int) time.Time {
	return base.Add(time.Duration(secs) * time.Second)
}

func TestBlockManagerFirstTransitionOpensBlock(t *testing.T) {
	m := NewBlockManager()
	m.Transition(StateActivity, base, nil)

	current, ok := m.Current()
	if !ok {
		t.Fatal("expected open block")
	}
	if current.Type != StateActivity || !current.Start.Equal(base) || current.End != nil {
		t.Fatalf("unexpected open block %#v", current)
	}
	if len(m.History()) != 0 {
		t.Fatalf("expected empty history, got %d", len(m.History()))
	}
}

func TestBlockManagerSameStateIsNoop(t *testing.T) {
	m := NewBlockManager()
	m.Transition(StateActivity, base, nil)
	before := m.current

	m.Transition(StateActivity, at(10), nil)
	m.Transition(StateActivity, at(20), Ptr(at(5)))

	if m.current != before {
		t.Fatal("expected open block identity to be unchanged")
	}
	if len(m.history) != 0 || m.Len() != 1 {
		t.Fatalf("expected one block, got history=%d len=%d", len(m.history), m.Len())
	}
}

func TestBlockManagerTransitionsAreContiguous(t *testing.T) {
	m := NewBlockManager()
	m.Transition(StateActivity, base, nil)
	m.Transition(StateBreak, at(100), nil)
	m.Transition(StateActivity, at(200), nil)
	m.Transition(StateBreak, at(300), nil)

	history := m.History()
	if len(history) != 3 {
		t.Fatalf("expected 3 closed blocks, got %d", len(history))
	}
	wantTypes := []State{StateActivity, StateBreak, StateActivity}
	for i, b := range history {
		if b.Type != wantTypes[i] {
			t.Fatalf("block %d type = %q, want %q", i, b.Type, wantTypes[i])
		}
		if i > 0 && !history[i-1].End.Equal(b.Start) {
			t.Fatalf("gap between block %d and %d", i-1, i)
		}
	}
	current, _ := m.Current()
	if current.Type != StateBreak || !current.Start.Equal(*history[2].End) {
		t.Fatalf("unexpected open block %#v", current)
	}
}

func TestBlockManagerThresholdScenario(t *testing.T) {
	cfg := ClassifierConfig{ThresholdSeconds: 300}
	m := NewBlockManager()
	m.Transition(StateActivity, base, nil)

	snap := Snapshot{WallTime: at(310), IdleSeconds: Ptr(310), Locked: Ptr(false), Inhibited: Ptr(false)}
	if got := Classify(snap, cfg); got != StateBreak {
		t.Fatalf("Classify() = %q, want break", got)
	}
	boundary, ok := BreakBoundary(snap, cfg)
	if !ok {
		t.Fatal("expected boundary")
	}
	m.Transition(StateBreak, snap.WallTime, &boundary)

	history := m.History()
	if len(history) != 1 {
		t.Fatalf("expected 1 closed block, got %d", len(history))
	}
	if !history[0].Start.Equal(base) || !history[0].End.Equal(at(300)) {
		t.Fatalf("unexpected activity block [%s, %s]", history[0].Start, history[0].End)
	}
	current, _ := m.Current()
	if current.Type != StateBreak || !current.Start.Equal(at(300)) {
		t.Fatalf("unexpected break block %#v", current)
	}
	totals := m.Totals(at(310))
	if totals.ActivitySeconds != 300 || totals.BreakSeconds != 10 {
		t.Fatalf("unexpected totals %#v", totals)
	}
}

func TestBlockManagerBoundaryClamp(t *testing.T) {
	start, now := at(100), at(500)
	cases := []struct {
		name     string
		override time.Time
		want     time.Time
	}{
		{name: "before start", override: at(0), want: start},
		{name: "inside", override: at(250), want: at(250)},
		{name: "at start", override: start, want: start},
		{name: "at now", override: now, want: now},
		{name: "after now", override: at(900), want: now},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewBlockManager()
			m.Transition(StateActivity, start, nil)
			override := tc.override
			m.Transition(StateBreak, now, &override)

			history := m.History()
			if !history[0].End.Equal(tc.want) {
				t.Fatalf("boundary = %s, want %s", history[0].End, tc.want)
			}
			current, _ := m.Current()
			if !current.Start.Equal(tc.want) {
				t.Fatalf("next start = %s, want %s", current.Start, tc.want)
			}
		})
	}
}

func TestBlockManagerTransitionClampsBackwardClock(t *testing.T) {
	m := NewBlockManager()
	m.Transition(StateActivity, at(500), nil)
	m.Transition(StateBreak, at(200), nil)

	history := m.History()
	if len(history) != 1 || !history[0].End.Equal(at(500)) {
		t.Fatalf("expected close at block start, got %#v", history)
	}
	current, _ := m.Current()
	if !current.Start.Equal(at(500)) {
		t.Fatalf("next start = %s, want %s", current.Start, at(500))
	}

	override := at(100)
	m.Transition(StateActivity, at(900), nil)
	m.Transition(StateBreak, at(300), &override)
	for i, b := range m.History() {
		if b.End.Before(b.Start) {
			t.Fatalf("block %d ends before it starts: %#v", i, b)
		}
	}
}

func TestBlockManagerOverrideIgnoredOutsideActivityToBreak(t *testing.T) {
	m := NewBlockManager()
	m.Transition(StateBreak, base, nil)
	m.Transition(StateActivity, at(100), Ptr(at(40)))

	history := m.History()
	if !history[0].End.Equal(at(100)) {
		t.Fatalf("expected break to close at now, got %s", history[0].End)
	}
}

func TestBlockManagerCoverageInvariant(t *testing.T) {
	m := NewBlockManager()
	m.Transition(StateActivity, base, nil)
	m.Transition(StateBreak, at(400), Ptr(at(350)))
	m.Transition(StateActivity, at(700), nil)
	m.Transition(StateBreak, at(1000), Ptr(at(50)))
	m.Transition(StateActivity, at(1200), nil)
	m.Transition(StateActivity, at(1300), nil)

	for _, now := range []int{1200, 1201, 5000} {
		totals := m.Totals(at(now))
		if got := totals.ActivitySeconds + totals.BreakSeconds; got != int64(now) {
			t.Fatalf("coverage at %d: got %d seconds", now, got)
		}
	}
}

func TestBlockManagerCloseCurrentAndOpenNew(t *testing.T) {
	m := NewBlockManager()
	if closed := m.CloseCurrent(base); closed != nil {
		t.Fatal("expected nil when no block is open")
	}

	evening := time.Date(2026, 2, 21, 23, 0, 0, 0, time.UTC)
	midnight := time.Date(2026, 2, 22, 0, 0, 0, 0, time.UTC)
	m.Transition(StateActivity, evening, nil)
	closed := m.CloseCurrent(midnight)
	if closed == nil || !closed.End.Equal(midnight) {
		t.Fatalf("unexpected closed block %#v", closed)
	}
	if _, ok := m.Current(); ok {
		t.Fatal("expected no open block after close")
	}
	if got := m.Totals(midnight.Add(time.Hour)).ActivitySeconds; got != 3600 {
		t.Fatalf("expected 3600 activity seconds, got %d", got)
	}
	state, ok := m.CurrentState()
	if !ok || state != StateActivity {
		t.Fatalf("CurrentState() = %q, %t", state, ok)
	}

	next := NewBlockManager()
	next.OpenNew(StateActivity, midnight)
	current, ok := next.Current()
	if !ok || !current.Start.Equal(midnight) || current.Type != StateActivity {
		t.Fatalf("unexpected reopened block %#v", current)
	}
}

func TestBlockManagerCloseCurrentClampsEnd(t *testing.T) {
	m := NewBlockManager()
	m.Transition(StateBreak, at(100), nil)
	closed := m.CloseCurrent(at(50))
	if !closed.End.Equal(at(100)) {
		t.Fatalf("expected end clamped to start, got %s", closed.End)
	}
}

func TestBlockManagerTotalsClampNegative(t *testing.T) {
	end := at(-30)
	m := NewBlockManager()
	m.Load([]Block{{Type: StateActivity, Start: base, End: &end}}, &Block{Type: StateBreak, Start: at(100)})

	totals := m.Totals(at(50))
	if totals.ActivitySeconds != 0 || totals.BreakSeconds != 0 {
		t.Fatalf("expected clamped zero totals, got %#v", totals)
	}
}

func TestBlockManagerLoadCopiesInput(t *testing.T) {
	end := at(60)
	history := []Block{{Type: StateActivity, Start: base, End: &end}}
	m := NewBlockManager()
	m.Load(history, nil)

	*history[0].End = at(999)
	got := m.History()
	if !got[0].End.Equal(at(60)) {
		t.Fatalf("expected loaded history to be independent, got %s", got[0].End)
	}
	got[0].Type = StateBreak
	if m.History()[0].Type != StateActivity {
		t.Fatal("expected History() to return a copy")
	}
}

func TestBlockManagerTotalsEmpty(t *testing.T) {
	totals := NewBlockManager().Totals(base)
	if totals.ActivitySeconds != 0 || totals.BreakSeconds != 0 {
		t.Fatalf("unexpected totals %#v", totals)
	}
	if _, ok := NewBlockManager().CurrentState(); ok {
		t.Fatal("expected no state for empty ledger")
	}
}
