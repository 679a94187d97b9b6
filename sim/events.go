package sim

import "time"

type EventKind string

const (
	EventStarted   EventKind = "started"
	EventDay       EventKind = "day"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventStopped   EventKind = "stopped"
)

// Event is emitted after every state transition and every simulated day.
// Sends never block: a slow consumer misses events.
type Event struct {
	Kind     EventKind `json:"kind"`
	RunID    string    `json:"run_id"`
	Strategy string    `json:"strategy"`
	Date     time.Time `json:"date,omitempty"`
	Progress Progress  `json:"progress"`
	Stats    LiveStats `json:"stats"`
	Err      string    `json:"error,omitempty"`
}

func send(ch chan<- Event, ev Event) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

func finishedEvent(s State) EventKind {
	switch s {
	case Failed:
		return EventFailed
	case Stopped:
		return EventStopped
	default:
		return EventCompleted
	}
}
