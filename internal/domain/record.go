package domain

// DayRecord is the persisted view of one day's journal.
type DayRecord struct {
	Day Day
	// Blocks holds every usable record in order. A checkpointed open block carries its
	// checkpoint as End and sets LastOpen.
	Blocks   []Block
	LastOpen bool
	// Stored is the totals object as written, which may lag Blocks after a crash.
	Stored Totals
}

// ClosedTotals sums the durations of records that have an end.
func (r DayRecord) ClosedTotals() Totals {
	var totals Totals
	for _, b := range r.Blocks {
		if b.End == nil {
			continue
		}
		secs := b.Seconds(*b.End)
		switch b.Type {
		case StateActivity:
			totals.ActivitySeconds += secs
		case StateBreak:
			totals.BreakSeconds += secs
		default:
			mustKnownState(b.Type)
		}
	}
	return totals
}

// Last returns the final record.
func (r DayRecord) Last() (Block, bool) {
	if len(r.Blocks) == 0 {
		return Block{}, false
	}
	return r.Blocks[len(r.Blocks)-1].clone(), true
}
