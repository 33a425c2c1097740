package app

import (
	"context"
	"time"

	"github.com/evanschultz/idleledger/internal/domain"
)

// Provider reads the session's idle, lock and inhibitor state.
type Provider interface {
	// Snapshot never fails; readings it cannot obtain are left nil.
	Snapshot(context.Context) domain.Snapshot
	// Diagnostics describes how readings are obtained, for the provider_mode record.
	Diagnostics() map[string]any
	Close() error
}

// SleepSource delivers suspend and resume notifications.
type SleepSource interface {
	Events() <-chan domain.SleepEvent
}

// JournalStore persists one document per day.
type JournalStore interface {
	Path(domain.Day) string
	WriteDay(domain.Day, domain.ClassifierConfig, *domain.BlockManager, time.Time) (string, error)
	LoadDay(domain.Day) (*domain.BlockManager, bool)
	ReadDay(domain.Day) (domain.DayRecord, bool)
	Days() ([]domain.Day, error)
}

// TransitionLog appends runtime records.
type TransitionLog interface {
	Path(domain.Day) string
	LogTransition(time.Time, *domain.State, domain.State, domain.Snapshot) error
	LogRollover(time.Time, domain.Day, domain.Day, domain.State) error
	LogSleep(domain.SleepEvent) error
	LogProviderMode(time.Time, map[string]any, map[string]string) error
	ReadLast(domain.Day, string) (map[string]any, bool)
}

// DayIndexEntry is one row of the day totals index.
type DayIndexEntry struct {
	Day        domain.Day
	Totals     domain.Totals
	BlockCount int
	UpdatedAt  time.Time
}

// DayIndex mirrors per-day totals for fast history queries.
type DayIndex interface {
	UpsertDay(context.Context, DayIndexEntry) error
	GetDay(context.Context, domain.Day) (DayIndexEntry, error)
	ListDays(context.Context, int) ([]DayIndexEntry, error)
	ReplaceAll(context.Context, []DayIndexEntry) error
}

// Clock returns the current time.
type Clock func() time.Time
