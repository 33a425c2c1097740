package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/evanschultz/idleledger/internal/domain"
)

// providerEnvKeys are the environment variables recorded with provider_mode.
var providerEnvKeys = []string{
	"XDG_RUNTIME_DIR",
	"XDG_SESSION_ID",
	"WAYLAND_DISPLAY",
	"HYPRLAND_INSTANCE_SIGNATURE",
}

// TrackerConfig holds the runtime settings the tracker reads.
type TrackerConfig struct {
	Classifier domain.ClassifierConfig
	Poll       time.Duration
	Heartbeat  time.Duration
}

// TrackerOption configures optional tracker collaborators.
type TrackerOption func(*Tracker)

// WithDayIndex mirrors each journal write into index.
func WithDayIndex(index DayIndex) TrackerOption {
	return func(t *Tracker) {
		t.index = index
	}
}

// WithSleepSource drains suspend and resume events before every poll.
func WithSleepSource(src SleepSource) TrackerOption {
	return func(t *Tracker) {
		t.sleep = src
	}
}

// WithLogger sets the runtime logger.
func WithLogger(logger *charmLog.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithClock replaces time.Now for shutdown checkpoints.
func WithClock(clock Clock) TrackerOption {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithGetenv replaces os.Getenv for provider_mode diagnostics.
func WithGetenv(getenv func(string) string) TrackerOption {
	return func(t *Tracker) {
		if getenv != nil {
			t.getenv = getenv
		}
	}
}

// TrackerStatus is a point-in-time view of the tracker.
type TrackerStatus struct {
	Day     domain.Day
	State   domain.State
	Started bool
	Totals  domain.Totals
}

// Tracker drives the ledger from provider snapshots. It is owned by one goroutine.
type Tracker struct {
	provider Provider
	journal  JournalStore
	log      TransitionLog
	index    DayIndex
	sleep    SleepSource
	cfg      TrackerConfig
	logger   *charmLog.Logger
	clock    Clock
	getenv   func(string) string

	started       bool
	day           domain.Day
	manager       *domain.BlockManager
	state         *domain.State
	lastHeartbeat time.Duration
	modeLogged    bool
	clockBehind   bool
	lastWall      time.Time
}

// NewTracker constructs a tracker.
func NewTracker(provider Provider, journal JournalStore, log TransitionLog, cfg TrackerConfig, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		provider: provider,
		journal:  journal,
		log:      log,
		cfg:      cfg,
		logger:   charmLog.New(io.Discard),
		clock:    time.Now,
		getenv:   os.Getenv,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Run polls until ctx is canceled, then writes a final checkpoint. Storage errors during
// polling are logged and do not stop the loop; the final write's error is returned.
func (t *Tracker) Run(ctx context.Context) error {
	if t.cfg.Poll <= 0 {
		return errors.New("poll interval must be > 0")
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return t.Shutdown()
		case <-timer.C:
		}
		if err := t.Tick(ctx); err != nil {
			t.logger.Error("tracker tick failed", "err", err)
		}
		timer.Reset(t.cfg.Poll)
	}
}

// Tick drains pending sleep events and processes one provider snapshot.
func (t *Tracker) Tick(ctx context.Context) error {
	var errs []error
	for _, ev := range t.drainSleep() {
		if err := t.HandleSleep(ev); err != nil {
			errs = append(errs, err)
		}
	}
	if err := t.Observe(t.provider.Snapshot(ctx)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Observe applies one snapshot: resume on first call, roll over at midnight, classify,
// transition, and checkpoint on change or heartbeat.
func (t *Tracker) Observe(snap domain.Snapshot) error {
	now := snap.WallTime
	var errs []error

	if !t.started {
		t.resume(domain.DayOf(now), snap.Monotonic)
	}
	switch observed := domain.DayOf(now); {
	case t.day.Before(observed):
		t.clockBehind = false
		if err := t.rollover(observed, now, snap.Monotonic); err != nil {
			errs = append(errs, err)
		}
	case observed.Before(t.day):
		// The wall clock went back past midnight; the tracked day stays authoritative.
		if !t.clockBehind {
			t.clockBehind = true
			t.logger.Warn("clock moved back before tracked day", "day", t.day, "observed", observed, "wall_time", now)
		}
	default:
		t.clockBehind = false
	}
	if now.Before(t.lastWall) {
		now = t.lastWall
	}
	if current, ok := t.manager.Current(); ok && now.Before(current.Start) {
		now = current.Start
	}
	t.lastWall = now

	next := domain.Classify(snap, t.cfg.Classifier)
	switch {
	case t.state == nil:
		t.manager.Transition(next, now, nil)
		t.state = &next
		if err := t.log.LogTransition(now, nil, next, snap); err != nil {
			errs = append(errs, fmt.Errorf("log start: %w", err))
		}
		errs = append(errs, t.checkpoint(now, snap.Monotonic))
	case next != *t.state:
		prev := *t.state
		var override *time.Time
		if prev == domain.StateActivity && next == domain.StateBreak {
			if boundary, ok := domain.BreakBoundary(snap, t.cfg.Classifier); ok {
				override = &boundary
			}
		}
		t.manager.Transition(next, now, override)
		t.state = &next
		if err := t.log.LogTransition(now, &prev, next, snap); err != nil {
			errs = append(errs, fmt.Errorf("log transition: %w", err))
		}
		t.logger.Debug("state changed", "from", prev, "to", next, "idle_seconds", derefInt(snap.IdleSeconds))
		errs = append(errs, t.checkpoint(now, snap.Monotonic))
	}

	if snap.Monotonic-t.lastHeartbeat >= t.cfg.Heartbeat {
		errs = append(errs, t.checkpoint(now, snap.Monotonic))
	}

	if !t.modeLogged {
		t.modeLogged = true
		if err := t.log.LogProviderMode(now, t.provider.Diagnostics(), t.providerEnv()); err != nil {
			errs = append(errs, fmt.Errorf("log provider mode: %w", err))
		}
	}
	return errors.Join(errs...)
}

// HandleSleep applies one sleep notification. Suspend closes the day's open block into a
// BREAK starting at the suspend time; resume is only logged.
func (t *Tracker) HandleSleep(ev domain.SleepEvent) error {
	var errs []error
	if err := t.log.LogSleep(ev); err != nil {
		errs = append(errs, fmt.Errorf("log sleep: %w", err))
	}
	t.logger.Info("sleep event", "phase", ev.Kind, "when", ev.When)

	switch ev.Kind {
	case domain.SleepResume:
		return errors.Join(errs...)
	case domain.SleepSuspend:
	default:
		return errors.Join(append(errs, fmt.Errorf("unknown sleep kind %q", ev.Kind))...)
	}
	if !t.started || t.state == nil {
		return errors.Join(errs...)
	}

	if observed := domain.DayOf(ev.When); t.day.Before(observed) {
		if err := t.rollover(observed, ev.When, t.lastHeartbeat); err != nil {
			errs = append(errs, err)
		}
	}
	at := ev.When
	if current, ok := t.manager.Current(); ok && at.Before(current.Start) {
		at = current.Start
	}
	if prev := *t.state; prev != domain.StateBreak {
		next := domain.StateBreak
		t.manager.Transition(next, at, nil)
		t.state = &next
		snap := domain.Snapshot{WallTime: at, ProviderMeta: map[string]any{"method": "prepare_for_sleep"}}
		if err := t.log.LogTransition(at, &prev, next, snap); err != nil {
			errs = append(errs, fmt.Errorf("log transition: %w", err))
		}
	}
	errs = append(errs, t.checkpoint(at, t.lastHeartbeat))
	return errors.Join(errs...)
}

// Shutdown writes a final checkpoint of the current day.
func (t *Tracker) Shutdown() error {
	if !t.started {
		return nil
	}
	now := t.clock()
	if _, err := t.persist(t.day, now); err != nil {
		return err
	}
	t.logger.Info("final journal written", "day", t.day, "path", t.journal.Path(t.day))
	return nil
}

// Status returns the tracker's current view.
func (t *Tracker) Status(now time.Time) TrackerStatus {
	status := TrackerStatus{Day: t.day, Started: t.started}
	if t.state != nil {
		status.State = *t.state
	}
	if t.manager != nil {
		status.Totals = t.manager.Totals(now)
	}
	return status
}

// resume starts tracking day from its journal. Blocks come back closed and the next
// classification opens a fresh one.
func (t *Tracker) resume(day domain.Day, mono time.Duration) {
	t.started = true
	t.day = day
	t.state = nil
	t.lastHeartbeat = mono
	manager, ok := t.journal.LoadDay(day)
	if !ok {
		manager = domain.NewBlockManager()
	}
	t.manager = manager
	t.logger.Info(
		"tracking day",
		"day", day,
		"resumed_blocks", manager.Len(),
		"journal", t.journal.Path(day),
		"transitions", t.log.Path(day),
	)
}

// rollover closes the tracked day at the observed day's midnight and carries the state over.
// Days skipped entirely get no journal.
func (t *Tracker) rollover(observed domain.Day, now time.Time, mono time.Duration) error {
	var errs []error
	midnight := observed.Midnight(now.Location())
	from := t.day

	if t.state != nil {
		t.manager.CloseCurrent(midnight)
		if _, err := t.persist(from, midnight); err != nil {
			errs = append(errs, err)
		}
		if err := t.log.LogRollover(midnight, from, observed, *t.state); err != nil {
			errs = append(errs, fmt.Errorf("log rollover: %w", err))
		}
	}

	t.day = observed
	t.manager = domain.NewBlockManager()
	if t.state != nil {
		t.manager.OpenNew(*t.state, midnight)
		errs = append(errs, t.checkpoint(now, mono))
	}
	t.logger.Info("day rollover", "from", from, "to", observed, "journal", t.journal.Path(observed))
	return errors.Join(errs...)
}

// checkpoint persists the current day and resets the heartbeat.
func (t *Tracker) checkpoint(now time.Time, mono time.Duration) error {
	t.lastHeartbeat = mono
	_, err := t.persist(t.day, now)
	return err
}

// persist writes day's journal and mirrors its totals into the index.
func (t *Tracker) persist(day domain.Day, now time.Time) (string, error) {
	path, err := t.journal.WriteDay(day, t.cfg.Classifier, t.manager, now)
	if err != nil {
		return "", fmt.Errorf("write journal %s: %w", day, err)
	}
	if t.index != nil {
		entry := DayIndexEntry{
			Day:        day,
			Totals:     t.manager.Totals(now),
			BlockCount: t.manager.Len(),
			UpdatedAt:  now,
		}
		if err := t.index.UpsertDay(context.Background(), entry); err != nil {
			t.logger.Warn("day index update failed", "day", day, "err", err)
		}
	}
	return path, nil
}

// drainSleep empties the sleep channel without blocking.
func (t *Tracker) drainSleep() []domain.SleepEvent {
	if t.sleep == nil {
		return nil
	}
	events := t.sleep.Events()
	var out []domain.SleepEvent
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

// providerEnv captures the session environment for diagnostics.
func (t *Tracker) providerEnv() map[string]string {
	env := make(map[string]string, len(providerEnvKeys))
	for _, key := range providerEnvKeys {
		env[key] = t.getenv(key)
	}
	return env
}

// derefInt renders an optional reading for logs.
func derefInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
