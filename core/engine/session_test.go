package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func note(message string) Event {
	return Event{Kind: EventNotification, Time: time.Now(), Notification: &Notification{Level: LevelInfo, Message: message}}
}

func collect(events <-chan Event) []Event {
	var collected []Event
	for event := range events {
		collected = append(collected, event)
	}
	return collected
}

func TestSession_ReplaysBufferedEvents(t *testing.T) {
	s := newSession(8)
	s.emit(note("one"))
	s.emit(note("two"))

	events, err := s.attach()
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	s.emit(note("three"))
	s.emit(Event{Kind: EventDone})

	got := collect(events)
	if len(got) != 4 {
		t.Fatalf("expected 4 events, got %d", len(got))
	}
	for i, message := range []string{"one", "two", "three"} {
		if got[i].Notification.Message != message {
			t.Fatalf("event %d = %q, want %q", i, got[i].Notification.Message, message)
		}
	}
	if got[3].Kind != EventDone {
		t.Fatalf("expected done last, got %s", got[3].Kind)
	}
}

func TestSession_DropsOldestWhenFull(t *testing.T) {
	s := newSession(3)
	for i := 0; i < 5; i++ {
		s.emit(note(fmt.Sprint(i)))
	}
	if s.droppedCount() != 2 {
		t.Fatalf("expected 2 dropped, got %d", s.droppedCount())
	}
	s.emit(Event{Kind: EventTerminate, Reason: "stop"})

	events, err := s.attach()
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	got := collect(events)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Notification.Message != "3" || got[1].Notification.Message != "4" {
		t.Fatalf("expected the newest notifications to survive, got %q and %q",
			got[0].Notification.Message, got[1].Notification.Message)
	}
	if got[2].Kind != EventTerminate {
		t.Fatalf("expected terminate last, got %s", got[2].Kind)
	}
}

func TestSession_SingleSubscriber(t *testing.T) {
	s := newSession(4)
	first, err := s.attach()
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := s.attach(); !errors.Is(err, ErrSessionAttached) {
		t.Fatalf("expected ErrSessionAttached, got %v", err)
	}

	s.detach(first)
	if _, ok := <-first; ok {
		t.Fatal("expected the detached channel to be closed")
	}

	s.emit(note("while detached"))
	second, err := s.attach()
	if err != nil {
		t.Fatalf("reattach: %v", err)
	}
	select {
	case event := <-second:
		if event.Notification.Message != "while detached" {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the buffered event to be replayed")
	}
}

func TestSession_SlowSubscriberNeverBlocks(t *testing.T) {
	s := newSession(2)
	events, err := s.attach()
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.emit(note(fmt.Sprint(i)))
		}
		s.emit(Event{Kind: EventDone})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a subscriber that does not read")
	}

	got := collect(events)
	if got[len(got)-1].Kind != EventDone {
		t.Fatalf("terminal event was not delivered: %+v", got)
	}
	if s.droppedCount() == 0 {
		t.Fatal("expected drops to be counted")
	}
}

func TestSession_TerminalEvictionIsCounted(t *testing.T) {
	s := newSession(2)
	events := mustAttach(t, s)
	s.emit(note("first"))
	s.emit(note("second"))
	s.emit(Event{Kind: EventDone})

	got := collect(events)
	if len(got) != 2 || got[0].Notification.Message != "second" || got[1].Kind != EventDone {
		t.Fatalf("unexpected events %+v", got)
	}
	if dropped := s.droppedCount(); dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
}

func TestSession_NothingAfterTerminal(t *testing.T) {
	s := newSession(4)
	s.emit(Event{Kind: EventDone})
	if s.emit(note("late")) {
		t.Fatal("expected events after the terminal one to be discarded")
	}

	got := collect(mustAttach(t, s))
	if len(got) != 1 || got[0].Kind != EventDone {
		t.Fatalf("unexpected events %+v", got)
	}

	// A later subscriber gets a closed, empty stream.
	if got := collect(mustAttach(t, s)); len(got) != 0 {
		t.Fatalf("expected no events, got %+v", got)
	}
}

func mustAttach(t *testing.T, s *session) <-chan Event {
	t.Helper()
	events, err := s.attach()
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	return events
}
