package logind

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evanschultz/idleledger/internal/domain"
	"github.com/godbus/dbus/v5"
)

// prepareForSleep is the fully qualified signal name.
const prepareForSleep = managerIface + ".PrepareForSleep"

// DefaultSleepBuffer is the event buffer used when none is given.
const DefaultSleepBuffer = 32

// SleepWatcher turns logind PrepareForSleep signals into sleep events.
type SleepWatcher struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal
	events  chan domain.SleepEvent
	now     func() time.Time
	dropped atomic.Int64
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// WatchSleep subscribes to PrepareForSleep on the system bus. Events that do not fit in the
// buffer are dropped and counted.
func WatchSleep(buffer int) (*SleepWatcher, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(managerPath),
		dbus.WithMatchInterface(managerIface),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("subscribe PrepareForSleep: %w", err)
	}
	w := newSleepWatcher(buffer, time.Now)
	w.conn = conn
	conn.Signal(w.signals)
	go w.loop()
	return w, nil
}

// newSleepWatcher builds a watcher without a connection.
func newSleepWatcher(buffer int, now func() time.Time) *SleepWatcher {
	if buffer <= 0 {
		buffer = DefaultSleepBuffer
	}
	return &SleepWatcher{
		signals: make(chan *dbus.Signal, 16),
		events:  make(chan domain.SleepEvent, buffer),
		now:     now,
		done:    make(chan struct{}),
	}
}

// Events returns the event channel. It is never closed.
func (w *SleepWatcher) Events() <-chan domain.SleepEvent {
	return w.events
}

// Dropped returns how many events were discarded because the buffer was full.
func (w *SleepWatcher) Dropped() int64 {
	return w.dropped.Load()
}

// Close stops the watcher. It is safe to call more than once.
func (w *SleepWatcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		if w.conn != nil {
			w.conn.RemoveSignal(w.signals)
			w.closeErr = w.conn.Close()
		}
	})
	return w.closeErr
}

// loop forwards signals until Close.
func (w *SleepWatcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case sig, ok := <-w.signals:
			if !ok {
				return
			}
			w.handle(sig)
		}
	}
}

// handle converts one signal and pushes it without blocking.
func (w *SleepWatcher) handle(sig *dbus.Signal) {
	if sig == nil || sig.Name != prepareForSleep || len(sig.Body) != 1 {
		return
	}
	starting, ok := sig.Body[0].(bool)
	if !ok {
		return
	}
	ev := domain.SleepEvent{Kind: domain.SleepResume, When: w.now()}
	if starting {
		ev.Kind = domain.SleepSuspend
	}
	select {
	case w.events <- ev:
	default:
		w.dropped.Add(1)
	}
}
