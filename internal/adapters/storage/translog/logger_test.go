package translog

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/idleledger/internal/domain"
)

var (
	day   = domain.Day{Year: 2026, Month: time.February, Day: 21}
	start = time.Date(2026, 2, 21, 9, 0, 0, 0, time.UTC)
)

func TestLogTransitionWritesStartThenTransition(t *testing.T) {
	l := New(t.TempDir(), WithRunID("run-1"))
	snap := domain.Snapshot{
		WallTime:     start,
		IdleSeconds:  domain.Ptr(4),
		Locked:       domain.Ptr(false),
		ProviderMeta: map[string]any{"method": "logind", "session_id": "c2"},
	}
	if err := l.LogTransition(start, nil, domain.StateActivity, snap); err != nil {
		t.Fatalf("LogTransition() error = %v", err)
	}
	prev := domain.StateActivity
	snap.IdleSeconds = domain.Ptr(310)
	if err := l.LogTransition(start.Add(310*time.Second), &prev, domain.StateBreak, snap); err != nil {
		t.Fatalf("LogTransition() error = %v", err)
	}

	records, err := l.ReadAll(day)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	first, second := records[0], records[1]
	if first["event"] != EventStart || first["prev_state"] != nil || first["next_state"] != "activity" {
		t.Fatalf("unexpected start record %#v", first)
	}
	if first["inhibited"] != nil || first["locked"] != false || first["idle_seconds"] != float64(4) {
		t.Fatalf("unexpected readings in start record %#v", first)
	}
	provider, _ := first["provider"].(map[string]any)
	if provider["method"] != "logind" || provider["session_id"] != "c2" {
		t.Fatalf("unexpected provider %#v", first["provider"])
	}
	if second["event"] != EventTransition || second["prev_state"] != "activity" || second["next_state"] != "break" {
		t.Fatalf("unexpected transition record %#v", second)
	}
	if second["ts"] != "2026-02-21T09:05:10Z" || second["run_id"] != "run-1" {
		t.Fatalf("unexpected ts/run_id %#v", second)
	}
}

func TestAppendUsesCalendarDayOfTimestamp(t *testing.T) {
	l := New(t.TempDir())
	midnight := time.Date(2026, 2, 22, 0, 0, 0, 0, time.UTC)
	if err := l.LogRollover(midnight, day, day.AddDays(1), domain.StateActivity); err != nil {
		t.Fatalf("LogRollover() error = %v", err)
	}
	if _, err := os.Stat(l.Path(day.AddDays(1))); err != nil {
		t.Fatalf("expected rollover in next day's log, stat error = %v", err)
	}
	record, ok := l.ReadLast(day.AddDays(1), EventRollover)
	if !ok {
		t.Fatal("expected rollover record")
	}
	if record["from"] != "2026-02-21" || record["to"] != "2026-02-22" || record["state"] != "activity" {
		t.Fatalf("unexpected rollover record %#v", record)
	}
	if record["run_id"] != l.RunID() || l.RunID() == "" {
		t.Fatalf("expected generated run id, got %#v", record["run_id"])
	}
}

func TestReadLastSkipsCorruptLinesAndPicksNewest(t *testing.T) {
	l := New(t.TempDir())
	if err := l.LogProviderMode(start, map[string]any{"method": "logind"}, map[string]string{"WAYLAND_DISPLAY": "wayland-1"}); err != nil {
		t.Fatalf("LogProviderMode() error = %v", err)
	}
	if err := l.LogProviderMode(start.Add(time.Minute), map[string]any{"method": "fallback"}, nil); err != nil {
		t.Fatalf("LogProviderMode() error = %v", err)
	}
	if err := l.LogSleep(domain.SleepEvent{Kind: domain.SleepSuspend, When: start.Add(2 * time.Minute)}); err != nil {
		t.Fatalf("LogSleep() error = %v", err)
	}
	f, err := os.OpenFile(l.Path(day), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	if _, err := f.WriteString("{\"event\":\"provider_mode\",\"trunc"); err != nil {
		t.Fatalf("WriteString() error = %v", err)
	}
	_ = f.Close()

	record, ok := l.ReadLast(day, EventProviderMode)
	if !ok {
		t.Fatal("expected provider_mode record")
	}
	provider, _ := record["provider"].(map[string]any)
	if provider["method"] != "fallback" {
		t.Fatalf("expected newest provider_mode, got %#v", record)
	}

	sleep, ok := l.ReadLast(day, EventSleep)
	if !ok || sleep["phase"] != "suspend" {
		t.Fatalf("unexpected sleep record %#v", sleep)
	}
	if _, ok := l.ReadLast(day, EventRollover); ok {
		t.Fatal("expected no rollover record")
	}
	if _, ok := l.ReadLast(day.AddDays(5), EventProviderMode); ok {
		t.Fatal("expected missing log to report false")
	}
}

func TestReadLastOnlyScansTail(t *testing.T) {
	l := New(t.TempDir())
	if err := l.LogProviderMode(start, map[string]any{"method": "logind"}, nil); err != nil {
		t.Fatalf("LogProviderMode() error = %v", err)
	}
	filler := map[string]any{"event": "transition", "pad": strings.Repeat("x", 1024)}
	for i := 0; i < 80; i++ {
		if err := l.Append(start.Add(time.Duration(i)*time.Second), filler); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if _, ok := l.ReadLast(day, EventProviderMode); ok {
		t.Fatal("expected record outside the tail window to be ignored")
	}
	if _, ok := l.ReadLast(day, EventTransition); !ok {
		t.Fatal("expected record inside the tail window")
	}
}

func TestAppendDoesNotMutateEvent(t *testing.T) {
	l := New(t.TempDir())
	event := map[string]any{"event": "custom"}
	if err := l.Append(start, event); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if len(event) != 1 {
		t.Fatalf("expected caller map untouched, got %#v", event)
	}
}
