// Package kiosk runs ordering sessions: it feeds customer utterances to an
// intent source, applies the resulting commands through the order guard,
// persists the session and fans out updates, events and speech.
package kiosk

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/teslashibe/go-kiosk/pkg/backend"
	"github.com/teslashibe/go-kiosk/pkg/events"
	"github.com/teslashibe/go-kiosk/pkg/intent"
	"github.com/teslashibe/go-kiosk/pkg/order"
	"github.com/teslashibe/go-kiosk/pkg/session"
	"github.com/teslashibe/go-kiosk/pkg/tts"
)

var (
	// ErrEmptyText is returned by Turn for a blank utterance.
	ErrEmptyText = errors.New("kiosk: empty utterance")

	// ErrNotReady is returned by Checkout unless the order is confirmed.
	ErrNotReady = errors.New("kiosk: order is not ready for checkout")
)

// Submitter places a confirmed cart with the order service. pending is the
// order left by an earlier failed attempt, or 0; a failure after the order
// exists is reported as a *backend.SubmitError carrying its id.
type Submitter interface {
	Submit(ctx context.Context, pending int, cart []*order.Item) (*backend.Receipt, error)
}

// TurnResult is the outcome of one customer utterance.
type TurnResult struct {
	Text      string            `json:"text"`
	Reply     string            `json:"reply"`
	Commands  []order.Command   `json:"commands"`
	Results   []order.Result    `json:"results"`
	// Rejected indexes the command list the intent source produced.
	Rejected  []order.Rejection `json:"rejected,omitempty"`
	State     session.Snapshot  `json:"state"`
	Audio     []byte            `json:"audio,omitempty"`
	AudioType string            `json:"audioType,omitempty"`
}

// ExecResult is the outcome of a direct command batch.
type ExecResult struct {
	Results  []order.Result    `json:"results"`
	Rejected []order.Rejection `json:"rejected,omitempty"`
	State    session.Snapshot  `json:"state"`
}

// CheckoutResult is the outcome of a checkout.
type CheckoutResult struct {
	Receipt *backend.Receipt `json:"receipt"`
	State   session.Snapshot `json:"state"`
}

// Service coordinates sessions, intent, checkout and notifications.
type Service struct {
	sessions   *session.Manager
	source     intent.Source
	backend    Submitter
	publisher  events.Publisher
	speech     tts.Provider
	maxHistory int
	logger     *slog.Logger

	mu        sync.RWMutex
	listeners []func(session.Snapshot)

	// sendMu orders delivery; sent holds the last version delivered per session.
	sendMu sync.Mutex
	sent   map[string]int64
}

// Option configures a Service.
type Option func(*Service)

// WithBackend enables order submission at checkout.
func WithBackend(b Submitter) Option {
	return func(s *Service) { s.backend = b }
}

// WithPublisher sets the order event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithSpeech enables spoken replies.
func WithSpeech(p tts.Provider) Option {
	return func(s *Service) { s.speech = p }
}

// WithMaxHistory bounds the stored conversation.
func WithMaxHistory(n int) Option {
	return func(s *Service) { s.maxHistory = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a service.
func New(sessions *session.Manager, source intent.Source, opts ...Option) *Service {
	s := &Service{
		sessions:   sessions,
		source:     source,
		publisher:  events.Nop{},
		maxHistory: 20,
		logger:     slog.Default(),
		sent:       make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "kiosk.service")
	return s
}

// OnUpdate registers fn to receive persisted snapshots in version order.
func (s *Service) OnUpdate(fn func(session.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// notify delivers snap unless a newer version of the session was already
// delivered. Turns on one session finish in lock order but may reach here
// out of order.
func (s *Service) notify(snap session.Snapshot) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if snap.Version <= s.sent[snap.ID] {
		s.logger.Debug("stale snapshot dropped", "session_id", snap.ID, "version", snap.Version)
		return
	}
	s.sent[snap.ID] = snap.Version

	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// Create starts a session.
func (s *Service) Create(ctx context.Context) (session.Snapshot, error) {
	sess, err := s.sessions.Create(ctx)
	if err != nil {
		return session.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Get returns the current snapshot of a session.
func (s *Service) Get(ctx context.Context, id string) (session.Snapshot, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return session.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Delete ends a session.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}
	s.sendMu.Lock()
	delete(s.sent, id)
	s.sendMu.Unlock()
	return nil
}

// Turn handles one customer utterance.
func (s *Service) Turn(ctx context.Context, id, text string) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	res := &TurnResult{Text: text}
	var before order.Status

	sess, err := s.sessions.Do(ctx, id, func(sess *session.Session) error {
		before = sess.State.Status
		sess.AppendTurn(intent.Turn{Role: intent.RoleUser, Text: text}, s.maxHistory)

		reply, err := s.source.Infer(ctx, &intent.Request{
			History: sess.History,
			State:   sess.State.Clone(),
		})
		if err != nil {
			return err
		}

		results, rejected := order.ApplyValidated(sess.State, reply.Commands)
		res.Reply = reply.Text
		res.Commands = reply.Commands
		res.Results = results
		res.Rejected = rebase(reply.Rejected, rejected)

		if reply.Text != "" {
			sess.AppendTurn(intent.Turn{Role: intent.RoleAssistant, Text: reply.Text}, s.maxHistory)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := s.logger.With("session_id", id)
	log.Info("turn", "text", text, "reply", res.Reply, "commands", len(res.Commands))
	s.logResults(log, res.Results, res.Rejected)

	res.State = sess.Snapshot()
	s.afterChange(ctx, sess, before)

	if s.speech != nil && res.Reply != "" {
		audio, err := s.speech.Synthesize(ctx, res.Reply)
		if err != nil {
			log.Warn("speech synthesis failed", "error", err)
		} else {
			res.Audio = audio.Audio
			res.AudioType = audio.ContentType
		}
	}
	return res, nil
}

// Execute applies commands sent directly by the kiosk screen.
func (s *Service) Execute(ctx context.Context, id string, cmds []order.Command) (*ExecResult, error) {
	res := &ExecResult{}
	var before order.Status

	sess, err := s.sessions.Do(ctx, id, func(sess *session.Session) error {
		before = sess.State.Status
		res.Results, res.Rejected = order.ApplyValidated(sess.State, cmds)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logResults(s.logger.With("session_id", id), res.Results, res.Rejected)
	res.State = sess.Snapshot()
	s.afterChange(ctx, sess, before)
	return res, nil
}

// Checkout submits a confirmed order and completes the session. Without a
// configured backend the order is completed locally and no receipt is
// returned. When submission fails after the backend order was created, the
// session keeps that order id and the next Checkout finishes the same order.
func (s *Service) Checkout(ctx context.Context, id string) (*CheckoutResult, error) {
	var (
		before    order.Status
		submitErr error
	)

	sess, err := s.sessions.Do(ctx, id, func(sess *session.Session) error {
		before = sess.State.Status
		if sess.State.Status != order.StatusReady {
			return ErrNotReady
		}
		if s.backend != nil {
			receipt, err := s.backend.Submit(ctx, sess.OrderID, sess.State.Cart)
			var partial *backend.SubmitError
			if errors.As(err, &partial) {
				sess.OrderID = partial.OrderID
				submitErr = err
				return nil
			}
			if err != nil {
				return err
			}
			sess.Receipt = receipt
			sess.OrderID = receipt.OrderID
		}
		order.Apply(sess.State, order.CompleteOrder())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if submitErr != nil {
		s.logger.Warn("checkout incomplete",
			"session_id", id,
			"order_id", sess.OrderID,
			"error", submitErr,
		)
		return nil, submitErr
	}

	s.logger.Info("checkout",
		"session_id", id,
		"order_id", sess.OrderID,
		"items", len(sess.State.Cart),
	)
	s.afterChange(ctx, sess, before)
	return &CheckoutResult{Receipt: sess.Receipt, State: sess.Snapshot()}, nil
}

// rebase maps rejections indexed into the source's accepted commands back
// to positions in the list the source produced, which its own rejections
// already use, and merges both in position order.
func rebase(prior, later []order.Rejection) []order.Rejection {
	out := append([]order.Rejection(nil), prior...)
	if len(later) == 0 {
		return out
	}
	taken := make(map[int]bool, len(prior))
	for _, r := range prior {
		taken[r.Index] = true
	}

	// pos walks source positions, k counts accepted commands passed.
	pos, k := 0, 0
	for _, r := range later {
		for ; ; pos++ {
			if taken[pos] {
				continue
			}
			if k == r.Index {
				break
			}
			k++
		}
		r.Index = pos
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b order.Rejection) int { return a.Index - b.Index })
	return out
}

func (s *Service) logResults(log *slog.Logger, results []order.Result, rejected []order.Rejection) {
	for _, r := range results {
		log.Debug("command applied", "action", r.Action, "ok", r.OK, "message", r.Message)
	}
	for _, r := range rejected {
		log.Info("command rejected", "index", r.Index, "action", r.Command.Action, "reason", r.Reason)
	}
}

// afterChange publishes lifecycle events and notifies listeners.
func (s *Service) afterChange(ctx context.Context, sess *session.Session, before order.Status) {
	if typ, ok := events.ForTransition(before, sess.State.Status); ok {
		e := events.New(typ, sess.ID, sess.State)
		e.OrderID = sess.OrderID
		if sess.Receipt != nil {
			e.TotalCents = sess.Receipt.TotalCents
		}
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.Error("publish event failed", "session_id", sess.ID, "type", typ, "error", err)
		}
	}
	s.notify(sess.Snapshot())
}
