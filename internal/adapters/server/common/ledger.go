// Package common holds the transport-neutral views shared by the HTTP and MCP adapters.
package common

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/idleledger/internal/app"
	"github.com/evanschultz/idleledger/internal/domain"
)

// ErrInvalidRequest marks caller input errors.
var ErrInvalidRequest = errors.New("invalid request")

// LedgerReader is the read-only surface the transports expose.
type LedgerReader interface {
	Today() domain.Day
	Day(day domain.Day) app.DayReport
	Summary(period app.Period) (app.PeriodSummary, error)
}

// TotalsView is the JSON shape of activity/break totals.
type TotalsView struct {
	ActivitySeconds int64 `json:"activity_seconds"`
	BreakSeconds    int64 `json:"break_seconds"`
}

// BlockView is the JSON shape of one journal block.
type BlockView struct {
	Type    string  `json:"type"`
	Start   string  `json:"start"`
	End     *string `json:"end"`
	Seconds *int64  `json:"seconds"`
}

// DayView is the JSON shape of one day report.
type DayView struct {
	Date     string      `json:"date"`
	Path     string      `json:"path"`
	Found    bool        `json:"found"`
	LastOpen bool        `json:"last_open"`
	Blocks   []BlockView `json:"blocks"`
	Totals   TotalsView  `json:"totals"`
}

// SummaryView is the JSON shape of one period summary.
type SummaryView struct {
	Period        string     `json:"period"`
	From          string     `json:"from"`
	To            string     `json:"to"`
	TargetDays    int        `json:"target_days"`
	Found         bool       `json:"found"`
	Totals        TotalsView `json:"totals"`
	TargetSeconds int64      `json:"target_seconds"`
	DeltaSeconds  int64      `json:"delta_seconds"`
	DeltaLabel    string     `json:"delta_label,omitempty"`
	Text          string     `json:"text"`
}

// ResolveDay parses a date argument. Empty and "today" mean today; "yesterday" is accepted.
func ResolveDay(reader LedgerReader, raw string) (domain.Day, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "", "today":
		return reader.Today(), nil
	case "yesterday":
		return reader.Today().AddDays(-1), nil
	}
	day, err := domain.ParseDay(raw)
	if err != nil {
		return domain.Day{}, fmt.Errorf("date %q: %w", raw, errors.Join(ErrInvalidRequest, err))
	}
	return day, nil
}

// DayReport resolves raw and returns that day's view.
func DayReport(reader LedgerReader, raw string) (DayView, error) {
	day, err := ResolveDay(reader, raw)
	if err != nil {
		return DayView{}, err
	}
	return NewDayView(reader.Day(day)), nil
}

// PeriodSummary parses raw and returns that period's view.
func PeriodSummary(reader LedgerReader, raw string) (SummaryView, error) {
	period, err := app.ParsePeriod(raw)
	if err != nil {
		return SummaryView{}, errors.Join(ErrInvalidRequest, err)
	}
	summary, err := reader.Summary(period)
	if err != nil {
		return SummaryView{}, fmt.Errorf("summary %s: %w", period, err)
	}
	return NewSummaryView(summary), nil
}

// NewDayView converts a day report.
func NewDayView(report app.DayReport) DayView {
	view := DayView{
		Date:     report.Day.String(),
		Path:     report.Path,
		Found:    report.Found,
		LastOpen: report.LastOpen,
		Blocks:   make([]BlockView, 0, len(report.Blocks)),
		Totals:   newTotalsView(report.Totals),
	}
	for _, b := range report.Blocks {
		bv := BlockView{Type: b.Type.String(), Start: b.Start.Format(time.RFC3339Nano)}
		if b.End != nil {
			end := b.End.Format(time.RFC3339Nano)
			bv.End = &end
			bv.Seconds = domain.Ptr(b.Seconds(*b.End))
		}
		view.Blocks = append(view.Blocks, bv)
	}
	return view
}

// NewSummaryView converts a period summary.
func NewSummaryView(s app.PeriodSummary) SummaryView {
	return SummaryView{
		Period:        string(s.Period),
		From:          s.From.String(),
		To:            s.To.String(),
		TargetDays:    s.TargetDays,
		Found:         s.Found,
		Totals:        newTotalsView(s.Totals),
		TargetSeconds: s.TargetSeconds,
		DeltaSeconds:  s.DeltaSeconds,
		DeltaLabel:    s.DeltaLabel,
		Text:          s.String(),
	}
}

func newTotalsView(t domain.Totals) TotalsView {
	return TotalsView{ActivitySeconds: t.ActivitySeconds, BreakSeconds: t.BreakSeconds}
}
