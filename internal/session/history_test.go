package session

import (
	"fmt"
	"testing"
)

func entry(cmd string) UndoEntry {
	return UndoEntry{CommandType: cmd}
}

func TestHistory_PushPop(t *testing.T) {
	h := NewHistory(5)

	if _, ok := h.Pop(); ok {
		t.Fatal("expected empty history to pop nothing")
	}

	h.Push(entry("move"))
	h.Push(entry("rest"))

	if h.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", h.Len())
	}

	top, ok := h.Peek()
	if !ok || top.CommandType != "rest" {
		t.Fatalf("expected peek to return rest, got %v", top.CommandType)
	}

	popped, _ := h.Pop()
	if popped.CommandType != "rest" {
		t.Fatalf("expected to pop rest, got %s", popped.CommandType)
	}
	if h.Len() != 1 {
		t.Fatalf("expected 1 entry after pop, got %d", h.Len())
	}
}

func TestHistory_CapEvictsOldestFirst(t *testing.T) {
	h := NewHistory(3)

	for i := 0; i < 5; i++ {
		h.Push(entry(fmt.Sprintf("cmd-%d", i)))
	}

	if h.Len() != 3 {
		t.Fatalf("expected history capped at 3, got %d", h.Len())
	}

	// Oldest entries (cmd-0, cmd-1) were evicted; remaining pop newest first.
	for _, want := range []string{"cmd-4", "cmd-3", "cmd-2"} {
		got, ok := h.Pop()
		if !ok || got.CommandType != want {
			t.Fatalf("expected %s, got %s", want, got.CommandType)
		}
	}
}

func TestEventRing_Bounded(t *testing.T) {
	r := NewEventRing(3)

	for i := 0; i < 5; i++ {
		r.Append(Event{Command: fmt.Sprintf("cmd-%d", i)})
	}

	if r.Len() != 3 {
		t.Fatalf("expected ring capped at 3, got %d", r.Len())
	}

	all := r.All()
	want := []string{"cmd-2", "cmd-3", "cmd-4"}
	for i, e := range all {
		if e.Command != want[i] {
			t.Fatalf("expected %s at index %d, got %s", want[i], i, e.Command)
		}
	}
}
