// Package intent turns what a customer said into order commands.
//
// Two sources are provided. LLM asks a chat model for a short spoken reply
// followed by a fenced JSON command block. Rules is a deterministic keyword
// parser for Korean utterances that needs no network access. Both filter the
// commands they produce through order.Guard against the state they were given,
// so callers receive only commands that make sense for that state.
package intent

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-kiosk/pkg/order"
)

// FallbackReply is spoken when the model could not be reached or answered
// with something unusable.
const FallbackReply = "죄송합니다. 다시 말씀해주세요."

// Role identifies who said a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance of the dialogue.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Request is the input of one inference.
type Request struct {
	// History is the dialogue so far, oldest first. The last user turn is the
	// utterance being interpreted.
	History []Turn

	// State is the order state the commands will be applied to.
	State *order.State
}

// Reply is the outcome of one inference.
type Reply struct {
	// Text is what the kiosk should say back.
	Text string `json:"text"`

	// Commands passed the batch guard and are ready for the reducer.
	Commands []order.Command `json:"commands"`

	// Rejected lists commands the guard filtered out.
	Rejected []order.Rejection `json:"rejected,omitempty"`
}

// Source interprets the latest user turn.
type Source interface {
	Infer(ctx context.Context, req *Request) (*Reply, error)
}

// Config holds settings shared by the sources.
type Config struct {
	// MaxHistory bounds how many turns are sent to the model.
	MaxHistory int

	Logger *slog.Logger
}

// Option configures a source.
type Option func(*Config)

// WithMaxHistory sets the number of most recent turns sent to the model.
func WithMaxHistory(n int) Option {
	return func(c *Config) { c.MaxHistory = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the default source settings.
func DefaultConfig() *Config {
	return &Config{
		MaxHistory: 20,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// LastUserText returns the text of the most recent user turn.
func LastUserText(history []Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return history[i].Text
		}
	}
	return ""
}

// guard filters cmds against s, tolerating a nil state.
func guard(s *order.State, cmds []order.Command) ([]order.Command, []order.Rejection) {
	if s == nil {
		s = order.NewState()
	}
	return order.Guard(s, cmds)
}
