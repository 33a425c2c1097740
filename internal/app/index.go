package app

import (
	"context"
	"fmt"
	"time"
)

// Reindex rebuilds the day index from every journal on disk and returns the row count.
func Reindex(ctx context.Context, journal JournalStore, index DayIndex, now time.Time) (int, error) {
	days, err := journal.Days()
	if err != nil {
		return 0, err
	}
	entries := make([]DayIndexEntry, 0, len(days))
	for _, day := range days {
		record, ok := journal.ReadDay(day)
		if !ok {
			continue
		}
		entries = append(entries, DayIndexEntry{
			Day:        day,
			Totals:     record.ClosedTotals(),
			BlockCount: len(record.Blocks),
			UpdatedAt:  now,
		})
	}
	if err := index.ReplaceAll(ctx, entries); err != nil {
		return 0, fmt.Errorf("replace day index: %w", err)
	}
	return len(entries), nil
}

// History lists up to limit indexed days, newest first.
func History(ctx context.Context, index DayIndex, limit int) ([]DayIndexEntry, error) {
	return index.ListDays(ctx, limit)
}
