package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/idleledger/internal/domain"
)

// Period selects the days a summary covers.
type Period string

// Period values.
const (
	PeriodToday     Period = "today"
	PeriodYesterday Period = "yesterday"
	PeriodWeek      Period = "week"
)

// ParsePeriod parses a period name; empty means today.
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case "", PeriodToday:
		return PeriodToday, nil
	case PeriodYesterday, PeriodWeek:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, raw)
	}
}

// ReportConfig holds the summary settings.
type ReportConfig struct {
	DailyTargetMinutes int
	WeekStartsSunday   bool
}

// PeriodSummary is the activity total of a period measured against its target.
type PeriodSummary struct {
	Period     Period
	From       domain.Day
	To         domain.Day
	TargetDays int
	// Found is false when a single-day period has no journal.
	Found         bool
	Totals        domain.Totals
	TargetSeconds int64
	// DeltaSeconds is the absolute distance from the target; DeltaLabel says which side.
	DeltaSeconds int64
	DeltaLabel   string
}

// String renders the summary as one line.
func (s PeriodSummary) String() string {
	if !s.Found {
		if s.Period == PeriodToday {
			return "today: no journal yet"
		}
		return fmt.Sprintf("%s: no journal", s.Period)
	}
	return fmt.Sprintf(
		"%s: activity %s, break %s, %s %s (target %s)",
		s.Period,
		FormatHM(s.Totals.ActivitySeconds),
		FormatHM(s.Totals.BreakSeconds),
		s.DeltaLabel,
		FormatHM(s.DeltaSeconds),
		FormatHM(s.TargetSeconds),
	)
}

// DayReport is the persisted state of one day.
type DayReport struct {
	Day      domain.Day
	Path     string
	Found    bool
	Blocks   []domain.Block
	LastOpen bool
	Totals   domain.Totals
}

// Reporter answers read-only questions from the journals.
type Reporter struct {
	journal JournalStore
	log     TransitionLog
	cfg     ReportConfig
	clock   Clock
}

// NewReporter constructs a reporter. A nil clock means time.Now.
func NewReporter(journal JournalStore, log TransitionLog, cfg ReportConfig, clock Clock) *Reporter {
	if clock == nil {
		clock = time.Now
	}
	return &Reporter{journal: journal, log: log, cfg: cfg, clock: clock}
}

// Today returns the current calendar day.
func (r *Reporter) Today() domain.Day {
	return domain.DayOf(r.clock())
}

// Summary totals period relative to today.
func (r *Reporter) Summary(period Period) (PeriodSummary, error) {
	return r.SummaryAt(period, r.Today())
}

// SummaryAt totals period relative to today.
func (r *Reporter) SummaryAt(period Period, today domain.Day) (PeriodSummary, error) {
	switch period {
	case PeriodToday:
		return r.singleDay(period, today), nil
	case PeriodYesterday:
		return r.singleDay(period, today.AddDays(-1)), nil
	case PeriodWeek:
		start := WeekStart(today, r.cfg.WeekStartsSunday)
		summary := PeriodSummary{Period: period, From: start, To: today, Found: true}
		for d := start; !today.Before(d); d = d.AddDays(1) {
			summary.TargetDays++
			if record, ok := r.journal.ReadDay(d); ok {
				totals := record.ClosedTotals()
				summary.Totals.ActivitySeconds += totals.ActivitySeconds
				summary.Totals.BreakSeconds += totals.BreakSeconds
			}
		}
		r.applyTarget(&summary)
		return summary, nil
	default:
		return PeriodSummary{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
}

// singleDay totals one day.
func (r *Reporter) singleDay(period Period, day domain.Day) PeriodSummary {
	summary := PeriodSummary{Period: period, From: day, To: day, TargetDays: 1}
	record, ok := r.journal.ReadDay(day)
	if !ok {
		return summary
	}
	summary.Found = true
	summary.Totals = record.ClosedTotals()
	r.applyTarget(&summary)
	return summary
}

// applyTarget fills the target and delta fields.
func (r *Reporter) applyTarget(s *PeriodSummary) {
	s.TargetSeconds = int64(r.cfg.DailyTargetMinutes) * 60 * int64(s.TargetDays)
	delta := s.Totals.ActivitySeconds - s.TargetSeconds
	if delta >= 0 {
		s.DeltaLabel = "excess"
		s.DeltaSeconds = delta
		return
	}
	s.DeltaLabel = "remaining"
	s.DeltaSeconds = -delta
}

// Day returns the persisted state of day.
func (r *Reporter) Day(day domain.Day) DayReport {
	report := DayReport{Day: day, Path: r.journal.Path(day)}
	record, ok := r.journal.ReadDay(day)
	if !ok {
		return report
	}
	report.Found = true
	report.Blocks = record.Blocks
	report.LastOpen = record.LastOpen
	report.Totals = record.ClosedTotals()
	return report
}

// WeekStart returns the first day of today's week: Monday, or Sunday when sunday is set.
func WeekStart(today domain.Day, sunday bool) domain.Day {
	weekday := int(today.Weekday())
	if sunday {
		return today.AddDays(-weekday)
	}
	// Monday=0 .. Sunday=6.
	return today.AddDays(-((weekday + 6) % 7))
}

// RoundToMinute rounds seconds to the nearest minute, halves up.
func RoundToMinute(seconds int64) int64 {
	return ((seconds + 30) / 60) * 60
}

// FormatHM renders seconds as "Hh MMm" after rounding; negatives render as zero.
func FormatHM(seconds int64) string {
	s := RoundToMinute(max(seconds, 0))
	minutes := s / 60
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}
