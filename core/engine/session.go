package engine

import (
	"errors"
	"sync"
	"time"
)

// ErrSessionAttached is returned when a second subscriber tries to attach to a job.
var ErrSessionAttached = errors.New("engine: a subscriber is already attached")

// EventKind distinguishes stream events.
type EventKind string

const (
	EventNotification EventKind = "notification"
	EventDone         EventKind = "done"
	EventTerminate    EventKind = "terminate"
)

// Level is the severity of a notification.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

// Notification is a progress message.
type Notification struct {
	Level   Level  `json:"type"`
	Message string `json:"message"`
	NodeID  string `json:"nodeId,omitempty"`
}

// Event is one item on a job's stream. Every job ends with exactly one done
// or terminate event.
type Event struct {
	Kind         EventKind      `json:"kind"`
	Time         time.Time      `json:"time"`
	Notification *Notification  `json:"notification,omitempty"`
	Artifacts    map[string]any `json:"artifacts,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	Code         Code           `json:"code,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (event Event) Terminal() bool {
	return event.Kind == EventDone || event.Kind == EventTerminate
}

// session is the single-writer stream of a job. Events emitted while nobody
// is attached go to a bounded replay buffer that drops the oldest entry when
// full. Delivery to an attached subscriber never blocks the job.
type session struct {
	mu         sync.Mutex
	capacity   int
	buffer     []Event
	subscriber chan Event
	closed     bool
	dropped    int
}

func newSession(capacity int) *session {
	if capacity <= 0 {
		capacity = 1
	}
	return &session{capacity: capacity}
}

// emit publishes event and reports whether it was buffered or delivered.
func (s *session) emit(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	delivered := true
	if s.subscriber == nil {
		if len(s.buffer) == s.capacity {
			s.buffer = s.buffer[1:]
			s.dropped++
		}
		s.buffer = append(s.buffer, event)
	} else {
		select {
		case s.subscriber <- event:
		default:
			if event.Terminal() {
				// Make room: the terminal event must reach the subscriber.
				select {
				case <-s.subscriber:
					s.dropped++
				default:
				}
				s.subscriber <- event
			} else {
				s.dropped++
				delivered = false
			}
		}
	}

	if event.Terminal() {
		s.closed = true
		if s.subscriber != nil {
			close(s.subscriber)
			s.subscriber = nil
		}
	}
	return delivered
}

// attach replays the buffered events into a new subscriber channel.
func (s *session) attach() (<-chan Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscriber != nil {
		return nil, ErrSessionAttached
	}

	channel := make(chan Event, s.capacity+len(s.buffer))
	for _, event := range s.buffer {
		channel <- event
	}
	s.buffer = nil

	if s.closed {
		close(channel)
		return channel, nil
	}
	s.subscriber = channel
	return channel, nil
}

// detach releases the current subscriber so another may attach later.
func (s *session) detach(channel <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscriber != nil && (<-chan Event)(s.subscriber) == channel {
		close(s.subscriber)
		s.subscriber = nil
	}
}

func (s *session) droppedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
