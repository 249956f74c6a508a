// Package events publishes order lifecycle events for downstream systems
// such as the kitchen display and reporting.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-kiosk/pkg/order"
)

// Type identifies an order lifecycle event.
type Type string

const (
	TypeConfirmed Type = "order.confirmed"
	TypeCompleted Type = "order.completed"
	TypeCancelled Type = "order.cancelled"
)

// Event is one order lifecycle change.
type Event struct {
	ID         string        `json:"id"`
	Type       Type          `json:"type"`
	SessionID  string        `json:"sessionId"`
	OrderID    int           `json:"orderId,omitempty"`
	Cart       []*order.Item `json:"cart"`
	Status     order.Status  `json:"status"`
	TotalCents int           `json:"totalCents,omitempty"`
	At         time.Time     `json:"at"`
}

// New builds an event with a fresh id from a snapshot of s.
func New(t Type, sessionID string, s *order.State) Event {
	st := s.Clone()
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		SessionID: sessionID,
		Cart:      st.Cart,
		Status:    st.Status,
		At:        time.Now().UTC(),
	}
}

// ForTransition returns the event type for a status change, if any.
func ForTransition(from, to order.Status) (Type, bool) {
	if from == to {
		return "", false
	}
	switch to {
	case order.StatusReady:
		return TypeConfirmed, true
	case order.StatusCompleted:
		return TypeCompleted, true
	case order.StatusCancelled:
		return TypeCancelled, true
	}
	return "", false
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish records e.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in publish order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *Recorder) Close() error { return nil }

var (
	_ Publisher = Nop{}
	_ Publisher = (*Recorder)(nil)
)
