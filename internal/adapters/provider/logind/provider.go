// Package logind reads session idle, lock and inhibitor hints from systemd-logind over D-Bus.
package logind

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/evanschultz/idleledger/internal/domain"
	"github.com/godbus/dbus/v5"
)

// D-Bus names used by logind.
const (
	busName       = "org.freedesktop.login1"
	managerPath   = dbus.ObjectPath("/org/freedesktop/login1")
	selfUserPath  = dbus.ObjectPath("/org/freedesktop/login1/user/self")
	managerIface  = "org.freedesktop.login1.Manager"
	sessionIface  = "org.freedesktop.login1.Session"
	userIface     = "org.freedesktop.login1.User"
	propertiesGet = "org.freedesktop.DBus.Properties.Get"
)

// MethodLogind and MethodNone are reported as provider.method.
const (
	MethodLogind = "logind"
	MethodNone   = "none"
)

// callTimeout bounds each D-Bus round trip.
const callTimeout = 2 * time.Second

// bus is the subset of a logind connection the provider needs.
type bus interface {
	Property(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error)
	Call(ctx context.Context, path dbus.ObjectPath, method string, args ...any) ([]any, error)
	Close() error
}

// Options configures a Provider.
type Options struct {
	// PreferHypridle is recorded in diagnostics; only logind readings are implemented.
	PreferHypridle bool
	Getenv         func(string) string
	Now            func() time.Time
}

// Provider implements app.Provider on top of logind session hints.
type Provider struct {
	bus            bus
	getenv         func(string) string
	now            func() time.Time
	monotonic      func() (time.Duration, bool)
	start          time.Time
	preferHypridle bool

	sessionPath dbus.ObjectPath
	sessionID   string
	lastErr     string
	idleSupport *bool

	closeOnce sync.Once
	closeErr  error
}

// New connects to the system bus. When the bus is unreachable the provider still works and
// reports every reading as unknown.
func New(opts Options) *Provider {
	p := newProvider(nil, opts)
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		p.lastErr = fmt.Sprintf("system bus: %v", err)
		return p
	}
	p.bus = &dbusBus{conn: conn}
	return p
}

// newProvider builds a provider over b.
func newProvider(b bus, opts Options) *Provider {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Provider{
		bus:            b,
		getenv:         opts.Getenv,
		now:            opts.Now,
		monotonic:      monotonicNow,
		start:          opts.Now(),
		preferHypridle: opts.PreferHypridle,
	}
}

// Snapshot reads one set of hints. It never fails; unreadable hints stay nil.
func (p *Provider) Snapshot(ctx context.Context) domain.Snapshot {
	now := p.now()
	snap := domain.Snapshot{
		WallTime:     now,
		Monotonic:    now.Sub(p.start),
		ProviderMeta: map[string]any{"method": MethodNone},
	}
	if p.bus == nil {
		snap.ProviderMeta["idle_reason"] = p.lastErr
		return snap
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	path, err := p.session(ctx)
	if err != nil {
		p.lastErr = err.Error()
		snap.ProviderMeta["idle_reason"] = p.lastErr
		return snap
	}
	snap.ProviderMeta["method"] = MethodLogind
	snap.ProviderMeta["session_id"] = p.sessionID
	snap.ProviderMeta["locked_method"] = "LockedHint"

	if locked, err := p.boolProperty(ctx, path, sessionIface, "LockedHint"); err == nil {
		snap.Locked = &locked
	}
	idle, reason := p.idleSeconds(ctx, path)
	snap.IdleSeconds = idle
	if reason != "" {
		snap.ProviderMeta["idle_reason"] = reason
	}
	supported := idle != nil
	p.idleSupport = &supported
	snap.ProviderMeta["logind_idle_supported"] = supported

	if blocked, err := p.bus.Property(ctx, managerPath, managerIface, "BlockInhibited"); err == nil {
		if what, ok := blocked.Value().(string); ok {
			inhibited := inhibitsIdle(what)
			snap.Inhibited = &inhibited
		}
	}
	return snap
}

// Diagnostics describes the provider for the provider_mode record.
func (p *Provider) Diagnostics() map[string]any {
	method := MethodNone
	if p.bus != nil && p.sessionPath != "" {
		method = MethodLogind
	}
	out := map[string]any{
		"method":          method,
		"session_id":      nilIfEmpty(p.sessionID),
		"locked_method":   "LockedHint",
		"prefer_hypridle": p.preferHypridle,
		"idle_reason":     nilIfEmpty(p.lastErr),
	}
	if p.idleSupport != nil {
		out["logind_idle_supported"] = *p.idleSupport
	} else {
		out["logind_idle_supported"] = nil
	}
	return out
}

// Close releases the bus connection. It is safe to call more than once.
func (p *Provider) Close() error {
	p.closeOnce.Do(func() {
		if p.bus != nil {
			p.closeErr = p.bus.Close()
		}
	})
	return p.closeErr
}

// session resolves and caches this process's logind session: by PID, then XDG_SESSION_ID,
// then the user's display session.
func (p *Provider) session(ctx context.Context) (dbus.ObjectPath, error) {
	if p.sessionPath != "" {
		return p.sessionPath, nil
	}
	path, err := p.lookupSession(ctx)
	if err != nil {
		return "", err
	}
	id, err := p.bus.Property(ctx, path, sessionIface, "Id")
	if err != nil {
		return "", fmt.Errorf("session id: %w", err)
	}
	p.sessionPath = path
	p.sessionID, _ = id.Value().(string)
	return path, nil
}

// lookupSession tries each session source in order.
func (p *Provider) lookupSession(ctx context.Context) (dbus.ObjectPath, error) {
	var errs []error
	body, err := p.bus.Call(ctx, managerPath, managerIface+".GetSessionByPID", uint32(os.Getpid()))
	if err == nil {
		if path, ok := firstPath(body); ok {
			return path, nil
		}
	} else {
		errs = append(errs, fmt.Errorf("by pid: %w", err))
	}

	if id := strings.TrimSpace(p.getenv("XDG_SESSION_ID")); id != "" {
		body, err := p.bus.Call(ctx, managerPath, managerIface+".GetSession", id)
		if err == nil {
			if path, ok := firstPath(body); ok {
				return path, nil
			}
		} else {
			errs = append(errs, fmt.Errorf("by XDG_SESSION_ID: %w", err))
		}
	}

	display, err := p.bus.Property(ctx, selfUserPath, userIface, "Display")
	if err == nil {
		if fields, ok := display.Value().([]any); ok && len(fields) == 2 {
			if path, ok := fields[1].(dbus.ObjectPath); ok && path != "" && path != "/" {
				return path, nil
			}
		}
		errs = append(errs, errors.New("user has no display session"))
	} else {
		errs = append(errs, fmt.Errorf("display session: %w", err))
	}
	return "", fmt.Errorf("no logind session: %w", errors.Join(errs...))
}

// idleSeconds derives idle time from IdleHint and IdleSinceHintMonotonic. A nil result comes
// with a reason.
func (p *Provider) idleSeconds(ctx context.Context, path dbus.ObjectPath) (*int, string) {
	hint, err := p.boolProperty(ctx, path, sessionIface, "IdleHint")
	if err != nil {
		return nil, "IdleHint unavailable"
	}
	if !hint {
		return domain.Ptr(0), ""
	}
	since, err := p.bus.Property(ctx, path, sessionIface, "IdleSinceHintMonotonic")
	if err != nil {
		return nil, "IdleSinceHintMonotonic unavailable"
	}
	sinceUS, ok := since.Value().(uint64)
	if !ok || sinceUS == 0 {
		return nil, "IdleSinceHintMonotonic unset"
	}
	mono, ok := p.monotonic()
	if !ok {
		return nil, "monotonic clock unavailable"
	}
	idle := mono - time.Duration(sinceUS)*time.Microsecond
	return domain.Ptr(int(max(idle, 0) / time.Second)), ""
}

// boolProperty reads one boolean property.
func (p *Provider) boolProperty(ctx context.Context, path dbus.ObjectPath, iface, name string) (bool, error) {
	v, err := p.bus.Property(ctx, path, iface, name)
	if err != nil {
		return false, err
	}
	b, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%s: unexpected type %s", name, v.Signature())
	}
	return b, nil
}

// inhibitsIdle reports whether a colon-separated BlockInhibited list includes idle.
func inhibitsIdle(what string) bool {
	for _, item := range strings.Split(what, ":") {
		if strings.TrimSpace(item) == "idle" {
			return true
		}
	}
	return false
}

// firstPath extracts an object path reply.
func firstPath(body []any) (dbus.ObjectPath, bool) {
	if len(body) == 0 {
		return "", false
	}
	path, ok := body[0].(dbus.ObjectPath)
	return path, ok && path != ""
}

// nilIfEmpty maps "" to nil for JSON output.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// dbusBus is the bus implementation over a real connection.
type dbusBus struct {
	conn *dbus.Conn
}

// Property reads iface.name on path.
func (b *dbusBus) Property(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error) {
	var v dbus.Variant
	err := b.conn.Object(busName, path).CallWithContext(ctx, propertiesGet, 0, iface, name).Store(&v)
	return v, err
}

// Call invokes method on path and returns the reply body.
func (b *dbusBus) Call(ctx context.Context, path dbus.ObjectPath, method string, args ...any) ([]any, error) {
	call := b.conn.Object(busName, path).CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return nil, call.Err
	}
	return call.Body, nil
}

// Close closes the connection.
func (b *dbusBus) Close() error {
	return b.conn.Close()
}
