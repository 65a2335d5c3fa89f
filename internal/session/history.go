package session

// UndoEntry captures the state either side of one committed command so the
// command can be reversed and reapplied.
type UndoEntry struct {
	CommandType string
	Before      *GameState
	After       *GameState
}

// History is a bounded stack of undo entries. Pushing beyond the cap evicts
// the oldest entry first, trading deep history for bounded memory.
type History struct {
	entries []UndoEntry
	max     int
}

// NewHistory creates a history bounded to max entries.
func NewHistory(max int) *History {
	if max < 1 {
		max = 1
	}
	return &History{max: max}
}

// Push appends an entry, evicting the oldest when the cap is reached.
func (h *History) Push(entry UndoEntry) {
	if len(h.entries) >= h.max {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, entry)
}

// Pop removes and returns the most recent entry.
func (h *History) Pop() (UndoEntry, bool) {
	if len(h.entries) == 0 {
		return UndoEntry{}, false
	}
	entry := h.entries[len(h.entries)-1]
	h.entries = h.entries[:len(h.entries)-1]
	return entry, true
}

// Peek returns the most recent entry without removing it.
func (h *History) Peek() (UndoEntry, bool) {
	if len(h.entries) == 0 {
		return UndoEntry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Clear removes all entries.
func (h *History) Clear() {
	h.entries = h.entries[:0]
}
