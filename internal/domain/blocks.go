package domain

import "time"

// Block is one contiguous interval tagged with a state. End is nil while the block is open.
type Block struct {
	Type  State
	Start time.Time
	End   *time.Time
}

// Open reports whether the block has no end yet.
func (b Block) Open() bool {
	return b.End == nil
}

// Seconds returns the whole-second duration up to end, or up to now when open. Never negative.
func (b Block) Seconds(now time.Time) int64 {
	end := now
	if b.End != nil {
		end = *b.End
	}
	d := end.Sub(b.Start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// clone returns a copy that shares no pointers with b.
func (b Block) clone() Block {
	out := b
	if b.End != nil {
		end := *b.End
		out.End = &end
	}
	return out
}

// BlockManager owns the ordered closed history and the single open block of one day.
// It is not safe for concurrent use; one goroutine drives it.
type BlockManager struct {
	history []Block
	current *Block
}

// NewBlockManager constructs an empty ledger.
func NewBlockManager() *BlockManager {
	return &BlockManager{}
}

// Transition switches the open block to next at now.
//
// For ACTIVITY->BREAK an optional boundary override moves the cut back to where idle time
// crossed the threshold; it is clamped into [current.Start, now]. A now earlier than the
// open block's start cuts at the start.
func (m *BlockManager) Transition(next State, now time.Time, boundaryOverride *time.Time) {
	mustKnownState(next)
	if m.current == nil {
		m.current = &Block{Type: next, Start: now}
		return
	}
	if m.current.Type == next {
		return
	}

	boundary := now
	if boundary.Before(m.current.Start) {
		boundary = m.current.Start
	}
	if boundaryOverride != nil && m.current.Type == StateActivity && next == StateBreak {
		boundary = clampTime(*boundaryOverride, m.current.Start, boundary)
	}

	m.closeCurrentAt(boundary)
	m.current = &Block{Type: next, Start: boundary}
}

// CloseCurrent force-closes the open block at end and moves it to history.
// It returns the closed block, or nil when nothing was open.
func (m *BlockManager) CloseCurrent(end time.Time) *Block {
	if m.current == nil {
		return nil
	}
	if end.Before(m.current.Start) {
		end = m.current.Start
	}
	closed := m.closeCurrentAt(end)
	return &closed
}

// OpenNew opens a fresh block. Any block still open is closed at start first.
func (m *BlockManager) OpenNew(state State, start time.Time) {
	mustKnownState(state)
	if m.current != nil {
		m.CloseCurrent(start)
	}
	m.current = &Block{Type: state, Start: start}
}

// Load replaces the ledger wholesale with copies of history and current.
func (m *BlockManager) Load(history []Block, current *Block) {
	m.history = make([]Block, 0, len(history))
	for _, b := range history {
		m.history = append(m.history, b.clone())
	}
	m.current = nil
	if current != nil {
		c := current.clone()
		m.current = &c
	}
}

// Totals sums block durations per state; the open block counts up to now.
func (m *BlockManager) Totals(now time.Time) Totals {
	var totals Totals
	add := func(b Block) {
		secs := b.Seconds(now)
		switch b.Type {
		case StateActivity:
			totals.ActivitySeconds += secs
		case StateBreak:
			totals.BreakSeconds += secs
		default:
			mustKnownState(b.Type)
		}
	}
	for _, b := range m.history {
		add(b)
	}
	if m.current != nil {
		add(*m.current)
	}
	return totals
}

// CurrentState returns the open block's state, else the last closed block's state.
func (m *BlockManager) CurrentState() (State, bool) {
	if m.current != nil {
		return m.current.Type, true
	}
	if n := len(m.history); n > 0 {
		return m.history[n-1].Type, true
	}
	return "", false
}

// Current returns a copy of the open block.
func (m *BlockManager) Current() (Block, bool) {
	if m.current == nil {
		return Block{}, false
	}
	return m.current.clone(), true
}

// History returns a copy of the closed blocks in order.
func (m *BlockManager) History() []Block {
	out := make([]Block, 0, len(m.history))
	for _, b := range m.history {
		out = append(out, b.clone())
	}
	return out
}

// Len returns the number of blocks including the open one.
func (m *BlockManager) Len() int {
	n := len(m.history)
	if m.current != nil {
		n++
	}
	return n
}

// closeCurrentAt closes the open block at end and appends it to history.
func (m *BlockManager) closeCurrentAt(end time.Time) Block {
	closed := *m.current
	closed.End = &end
	m.history = append(m.history, closed)
	m.current = nil
	return closed.clone()
}

// clampTime bounds t into [lo, hi].
func clampTime(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		t = lo
	}
	if t.After(hi) {
		t = hi
	}
	return t
}
