package session

// EventRing is a bounded ring of session events. Appending beyond capacity
// overwrites the oldest event.
type EventRing struct {
	events []Event
	head   int
	count  int
}

// NewEventRing creates a ring holding at most capacity events.
func NewEventRing(capacity int) *EventRing {
	if capacity < 1 {
		capacity = 1
	}
	return &EventRing{events: make([]Event, capacity)}
}

// Append adds an event, overwriting the oldest when full.
func (r *EventRing) Append(e Event) {
	if r.count < len(r.events) {
		r.events[(r.head+r.count)%len(r.events)] = e
		r.count++
		return
	}
	r.events[r.head] = e
	r.head = (r.head + 1) % len(r.events)
}

// Len returns the number of stored events.
func (r *EventRing) Len() int {
	return r.count
}

// All returns the stored events oldest first.
func (r *EventRing) All() []Event {
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.events[(r.head+i)%len(r.events)])
	}
	return out
}
