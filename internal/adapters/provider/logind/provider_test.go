package logind

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evanschultz/idleledger/internal/domain"
	"github.com/godbus/dbus/v5"
)

const testSession = dbus.ObjectPath("/org/freedesktop/login1/session/_32")

// fakeBus serves scripted properties and method replies.
type fakeBus struct {
	props  map[string]any
	calls  map[string][]any
	closed int
}

func (b *fakeBus) Property(_ context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error) {
	v, ok := b.props[string(path)+" "+iface+"."+name]
	if !ok {
		return dbus.Variant{}, errors.New("no such property")
	}
	return dbus.MakeVariant(v), nil
}

func (b *fakeBus) Call(_ context.Context, path dbus.ObjectPath, method string, _ ...any) ([]any, error) {
	body, ok := b.calls[string(path)+" "+method]
	if !ok {
		return nil, errors.New("no such method")
	}
	return body, nil
}

func (b *fakeBus) Close() error {
	b.closed++
	return nil
}

func sessionProp(name string) string {
	return string(testSession) + " " + sessionIface + "." + name
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		props: map[string]any{
			sessionProp("Id"):         "32",
			sessionProp("LockedHint"): false,
			sessionProp("IdleHint"):   false,
			string(managerPath) + " " + managerIface + ".BlockInhibited": "handle-power-key:sleep",
		},
		calls: map[string][]any{
			string(managerPath) + " " + managerIface + ".GetSessionByPID": {testSession},
		},
	}
}

func newTestProvider(b bus, mono time.Duration) *Provider {
	p := newProvider(b, Options{Getenv: func(string) string { return "" }})
	p.monotonic = func() (time.Duration, bool) { return mono, true }
	return p
}

func TestSnapshotActiveSession(t *testing.T) {
	b := newFakeBus()
	p := newTestProvider(b, time.Hour)

	snap := p.Snapshot(context.Background())
	if snap.IdleSeconds == nil || *snap.IdleSeconds != 0 {
		t.Fatalf("expected idle 0, got %v", snap.IdleSeconds)
	}
	if snap.Locked == nil || *snap.Locked {
		t.Fatalf("expected unlocked, got %v", snap.Locked)
	}
	if snap.Inhibited == nil || *snap.Inhibited {
		t.Fatalf("expected not inhibited, got %v", snap.Inhibited)
	}
	if snap.MetaString("method") != MethodLogind || snap.MetaString("session_id") != "32" {
		t.Fatalf("unexpected meta %#v", snap.ProviderMeta)
	}
	if got := domain.Classify(snap, domain.ClassifierConfig{ThresholdSeconds: 300}); got != domain.StateActivity {
		t.Fatalf("Classify() = %s", got)
	}
}

func TestSnapshotIdleSinceMonotonic(t *testing.T) {
	b := newFakeBus()
	b.props[sessionProp("IdleHint")] = true
	b.props[sessionProp("LockedHint")] = true
	b.props[sessionProp("IdleSinceHintMonotonic")] = uint64((time.Hour - 7*time.Minute) / time.Microsecond)
	b.props[string(managerPath)+" "+managerIface+".BlockInhibited"] = "sleep:idle"
	p := newTestProvider(b, time.Hour)

	snap := p.Snapshot(context.Background())
	if snap.IdleSeconds == nil || *snap.IdleSeconds != 420 {
		t.Fatalf("expected idle 420, got %v", snap.IdleSeconds)
	}
	if snap.Locked == nil || !*snap.Locked || snap.Inhibited == nil || !*snap.Inhibited {
		t.Fatalf("expected locked and inhibited, got %#v", snap)
	}
}

func TestSnapshotIdleClampsFutureHint(t *testing.T) {
	b := newFakeBus()
	b.props[sessionProp("IdleHint")] = true
	b.props[sessionProp("IdleSinceHintMonotonic")] = uint64(2 * time.Hour / time.Microsecond)
	p := newTestProvider(b, time.Hour)

	if snap := p.Snapshot(context.Background()); snap.IdleSeconds == nil || *snap.IdleSeconds != 0 {
		t.Fatalf("expected clamped idle 0, got %v", snap.IdleSeconds)
	}
}

func TestSnapshotUnknownIdle(t *testing.T) {
	b := newFakeBus()
	b.props[sessionProp("IdleHint")] = true
	p := newTestProvider(b, time.Hour)

	snap := p.Snapshot(context.Background())
	if snap.IdleSeconds != nil {
		t.Fatalf("expected unknown idle, got %d", *snap.IdleSeconds)
	}
	if snap.MetaString("idle_reason") == "" {
		t.Fatalf("expected idle_reason, got %#v", snap.ProviderMeta)
	}
	if diag := p.Diagnostics(); diag["logind_idle_supported"] != false {
		t.Fatalf("unexpected diagnostics %#v", diag)
	}
}

func TestSessionFallsBackToEnv(t *testing.T) {
	b := newFakeBus()
	delete(b.calls, string(managerPath)+" "+managerIface+".GetSessionByPID")
	b.calls[string(managerPath)+" "+managerIface+".GetSession"] = []any{testSession}
	p := newTestProvider(b, time.Hour)
	p.getenv = func(key string) string {
		if key == "XDG_SESSION_ID" {
			return "32"
		}
		return ""
	}

	if snap := p.Snapshot(context.Background()); snap.MetaString("method") != MethodLogind {
		t.Fatalf("expected logind session via env, got %#v", snap.ProviderMeta)
	}
}

func TestSessionFallsBackToDisplay(t *testing.T) {
	b := newFakeBus()
	delete(b.calls, string(managerPath)+" "+managerIface+".GetSessionByPID")
	b.props[string(selfUserPath)+" "+userIface+".Display"] = []any{"32", testSession}
	p := newTestProvider(b, time.Hour)

	if snap := p.Snapshot(context.Background()); snap.MetaString("session_id") != "32" {
		t.Fatalf("expected display session, got %#v", snap.ProviderMeta)
	}
}

func TestSnapshotWithoutSession(t *testing.T) {
	b := newFakeBus()
	b.calls = map[string][]any{}
	p := newTestProvider(b, time.Hour)

	snap := p.Snapshot(context.Background())
	if snap.IdleSeconds != nil || snap.Locked != nil || snap.Inhibited != nil {
		t.Fatalf("expected unknown readings, got %#v", snap)
	}
	if snap.MetaString("method") != MethodNone || snap.MetaString("idle_reason") == "" {
		t.Fatalf("unexpected meta %#v", snap.ProviderMeta)
	}
	if got := domain.Classify(snap, domain.ClassifierConfig{ThresholdSeconds: 300}); got != domain.StateActivity {
		t.Fatalf("unknown readings should classify as activity, got %s", got)
	}
}

func TestSnapshotWithoutBus(t *testing.T) {
	p := newTestProvider(nil, 0)
	p.lastErr = "system bus: refused"

	snap := p.Snapshot(context.Background())
	if snap.MetaString("idle_reason") != "system bus: refused" {
		t.Fatalf("unexpected meta %#v", snap.ProviderMeta)
	}
	if diag := p.Diagnostics(); diag["method"] != MethodNone || diag["logind_idle_supported"] != nil {
		t.Fatalf("unexpected diagnostics %#v", diag)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	b := newFakeBus()
	p := newTestProvider(b, 0)
	for range 3 {
		if err := p.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}
	if b.closed != 1 {
		t.Fatalf("expected one bus close, got %d", b.closed)
	}
}

func TestInhibitsIdle(t *testing.T) {
	cases := map[string]bool{
		"":                     false,
		"sleep":                false,
		"idle":                 true,
		"shutdown:sleep:idle":  true,
		"handle-lid-switch":    false,
		"sleep: idle ":         true,
		"idle-something:sleep": false,
	}
	for what, want := range cases {
		if got := inhibitsIdle(what); got != want {
			t.Fatalf("inhibitsIdle(%q) = %t, want %t", what, got, want)
		}
	}
}
