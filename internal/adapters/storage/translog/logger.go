// Package translog appends JSON-lines records of state changes and runtime events, one file per day.
package translog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/idleledger/internal/domain"
	"github.com/google/uuid"
)

// Event names written to the "event" field.
const (
	EventStart        = "start"
	EventTransition   = "transition"
	EventRollover     = "rollover"
	EventSleep        = "sleep"
	EventProviderMode = "provider_mode"
)

// tailWindow bounds how much of a log ReadLast scans.
const tailWindow = 64 * 1024

// Logger writes transition-log records under one directory.
type Logger struct {
	dir   string
	runID string
}

// Option configures a Logger.
type Option func(*Logger)

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(l *Logger) {
		if id = strings.TrimSpace(id); id != "" {
			l.runID = id
		}
	}
}

// New constructs a logger rooted at dir. Every record it writes carries the same run_id.
func New(dir string, opts ...Option) *Logger {
	l := &Logger{dir: dir, runID: uuid.NewString()}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// RunID returns the identifier stamped on this logger's records.
func (l *Logger) RunID() string {
	return l.runID
}

// Path returns the log file for day.
func (l *Logger) Path(day domain.Day) string {
	return filepath.Join(l.dir, day.String()+".jsonl")
}

// Append writes one record to the file of when's calendar day. The line is written with a
// single write and synced before returning.
func (l *Logger) Append(when time.Time, event map[string]any) error {
	record := make(map[string]any, len(event)+2)
	for k, v := range event {
		record[k] = v
	}
	record["ts"] = when.Format(time.RFC3339Nano)
	record["run_id"] = l.runID

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode transition record: %w", err)
	}
	line = append(line, '\n')

	path := l.Path(domain.DayOf(when))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create transition log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transition log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append transition log: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync transition log: %w", err)
	}
	return f.Close()
}

// LogTransition records a state change. A nil prev marks the first state of a run.
func (l *Logger) LogTransition(when time.Time, prev *domain.State, next domain.State, snapshot domain.Snapshot) error {
	event := map[string]any{
		"event":        EventTransition,
		"prev_state":   nil,
		"next_state":   next.String(),
		"idle_seconds": snapshot.IdleSeconds,
		"locked":       snapshot.Locked,
		"inhibited":    snapshot.Inhibited,
		"provider": map[string]any{
			"method":     metaOrNil(snapshot, "method"),
			"session_id": metaOrNil(snapshot, "session_id"),
		},
	}
	if prev == nil {
		event["event"] = EventStart
	} else {
		event["prev_state"] = prev.String()
	}
	return l.Append(when, event)
}

// LogRollover records a day boundary carried across by the state machine.
func (l *Logger) LogRollover(midnight time.Time, from, to domain.Day, state domain.State) error {
	return l.Append(midnight, map[string]any{
		"event": EventRollover,
		"from":  from.String(),
		"to":    to.String(),
		"state": state.String(),
	})
}

// LogSleep records a suspend or resume notification.
func (l *Logger) LogSleep(ev domain.SleepEvent) error {
	return l.Append(ev.When, map[string]any{
		"event": EventSleep,
		"phase": string(ev.Kind),
	})
}

// LogProviderMode records how the provider reads the session, for status diagnostics.
func (l *Logger) LogProviderMode(when time.Time, provider map[string]any, env map[string]string) error {
	return l.Append(when, map[string]any{
		"event":    EventProviderMode,
		"provider": provider,
		"env":      env,
	})
}

// ReadLast returns the newest record of kind event in the tail of the day's log.
// Corrupt lines are skipped.
func (l *Logger) ReadLast(day domain.Day, event string) (map[string]any, bool) {
	f, err := os.Open(l.Path(day))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, false
	}
	offset := max(info.Size()-tailWindow, 0)
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, false
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, false
	}

	lines := bytes.Split(data, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		if record["event"] == event {
			return record, true
		}
	}
	return nil, false
}

// ReadAll returns every decodable record of the day's log in file order.
func (l *Logger) ReadAll(day domain.Day) ([]map[string]any, error) {
	data, err := os.ReadFile(l.Path(day))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read transition log: %w", err)
	}
	var out []map[string]any
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

// metaOrNil returns a provider metadata value, or nil when absent.
func metaOrNil(snapshot domain.Snapshot, key string) any {
	if snapshot.ProviderMeta == nil {
		return nil
	}
	return snapshot.ProviderMeta[key]
}
