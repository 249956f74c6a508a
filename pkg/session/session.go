// Package session keeps per-customer ordering sessions.
//
// A session owns one order.State plus the conversation history the intent
// source needs. All mutation of a session goes through Manager.Do, which
// serialises callers per session id and persists the result; different
// sessions never share state or locks.
package session

import (
	"errors"
	"time"

	"github.com/teslashibe/go-kiosk/pkg/backend"
	"github.com/teslashibe/go-kiosk/pkg/intent"
	"github.com/teslashibe/go-kiosk/pkg/order"
)

var (
	// ErrNotFound is returned for unknown or expired sessions.
	ErrNotFound = errors.New("session: not found")

	// ErrClosed is returned once the manager or store has been closed.
	ErrClosed = errors.New("session: closed")
)

// Session is the persisted state of one kiosk customer.
type Session struct {
	ID        string           `json:"id"`
	State     *order.State     `json:"state"`
	History   []intent.Turn    `json:"history,omitempty"`
	OrderID   int              `json:"orderId,omitempty"`
	Receipt   *backend.Receipt `json:"receipt,omitempty"`
	Version   int64            `json:"version"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Snapshot is the wire form pushed to kiosk screens.
type Snapshot struct {
	ID          string           `json:"id"`
	Cart        []*order.Item    `json:"cart"`
	CurrentItem *order.Item      `json:"currentItem"`
	Status      order.Status     `json:"status"`
	OrderID     int              `json:"orderId,omitempty"`
	Receipt     *backend.Receipt `json:"receipt,omitempty"`
	Version     int64            `json:"version"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Snapshot returns a deep copy of the session's order state in wire form.
func (s *Session) Snapshot() Snapshot {
	st := s.State.Clone()
	return Snapshot{
		ID:          s.ID,
		Cart:        st.Cart,
		CurrentItem: st.CurrentItem,
		Status:      st.Status,
		OrderID:     s.OrderID,
		Receipt:     s.Receipt,
		Version:     s.Version,
		UpdatedAt:   s.UpdatedAt,
	}
}

// AppendTurn records a conversation turn, keeping at most max turns.
func (s *Session) AppendTurn(t intent.Turn, max int) {
	s.History = append(s.History, t)
	if max > 0 && len(s.History) > max {
		s.History = append([]intent.Turn(nil), s.History[len(s.History)-max:]...)
	}
}

func (s *Session) normalize() {
	if s.State == nil {
		s.State = order.NewState()
	}
	s.State.Normalize()
}
