package domain

import (
	"errors"
	"testing"
	"time"
)

func TestDayRoundTrip(t *testing.T) {
	d, err := ParseDay("2026-02-28")
	if err != nil {
		t.Fatalf("ParseDay() error = %v", err)
	}
	if d.String() != "2026-02-28" {
		t.Fatalf("unexpected day %q", d.String())
	}
	if next := d.AddDays(1); next.String() != "2026-03-01" {
		t.Fatalf("unexpected next day %q", next.String())
	}
	if prev := d.AddDays(-28); prev.String() != "2026-01-31" {
		t.Fatalf("unexpected previous day %q", prev.String())
	}
	if !d.Before(d.AddDays(1)) || d.AddDays(1).Before(d) || d.Before(d) {
		t.Fatal("unexpected Before ordering")
	}
}

func TestParseDayRejectsGarbage(t *testing.T) {
	if _, err := ParseDay("21/02/2026"); !errors.Is(err, ErrInvalidDay) {
		t.Fatalf("expected ErrInvalidDay, got %v", err)
	}
}

func TestDayMidnightUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, 2, 22, 0, 30, 0, 0, loc)
	midnight := DayOf(now).Midnight(loc)
	if !midnight.Equal(time.Date(2026, 2, 22, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected midnight %s", midnight)
	}
	if DayOf(now.UTC()).String() != "2026-02-21" {
		t.Fatalf("expected UTC date to differ, got %s", DayOf(now.UTC()))
	}
}

func TestDayWeekday(t *testing.T) {
	d := Day{Year: 2026, Month: time.February, Day: 22}
	if d.Weekday() != time.Sunday {
		t.Fatalf("unexpected weekday %s", d.Weekday())
	}
}
