package intent

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/teslashibe/go-kiosk/pkg/inference"
	"github.com/teslashibe/go-kiosk/pkg/order"
)

var jsonBlock = regexp.MustCompile("```json\\s*([\\s\\S]*?)```")

// SplitReply separates the spoken prose of a model reply from its first
// fenced json block. The prose is everything before the block. ok is false
// when the reply carries no block.
func SplitReply(content string) (text string, payload []byte, ok bool) {
	m := jsonBlock.FindStringSubmatchIndex(content)
	if m == nil {
		if i := strings.Index(content, "```json"); i >= 0 {
			// unterminated block: keep the prose, drop the fragment
			return strings.TrimSpace(content[:i]), nil, false
		}
		return strings.TrimSpace(content), nil, false
	}
	return strings.TrimSpace(content[:m[0]]), []byte(content[m[2]:m[3]]), true
}

// LLM is a Source backed by a chat model.
type LLM struct {
	provider inference.Provider
	config   *Config
	logger   *slog.Logger
}

// NewLLM creates a model-backed source.
func NewLLM(p inference.Provider, opts ...Option) *LLM {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return &LLM{
		provider: p,
		config:   cfg,
		logger:   cfg.Logger.With("component", "intent.llm"),
	}
}

// Infer asks the model for a reply and commands. A model failure is not an
// error: the reply falls back to FallbackReply with no commands.
func (l *LLM) Infer(ctx context.Context, req *Request) (*Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages := []inference.Message{inference.NewSystemMessage(BuildPrompt(req.State))}
	history := req.History
	if n := l.config.MaxHistory; n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	for _, t := range history {
		if t.Role == RoleAssistant {
			messages = append(messages, inference.NewAssistantMessage(t.Text))
		} else {
			messages = append(messages, inference.NewUserMessage(t.Text))
		}
	}

	resp, err := l.provider.Chat(ctx, &inference.ChatRequest{Messages: messages})
	if err != nil {
		var apiErr *inference.APIError
		if errors.As(err, &apiErr) && apiErr.IsUnauthorized() {
			l.logger.Error("model rejected credentials", "error", err)
		} else {
			l.logger.Warn("chat failed", "error", err)
		}
		return &Reply{Text: FallbackReply}, nil
	}

	text, payload, found := SplitReply(resp.Message.Content)
	if !found {
		l.logger.Debug("reply without command block")
		return &Reply{Text: text}, nil
	}

	cmds, err := order.ParseCommands(payload)
	if err != nil {
		l.logger.Warn("malformed commands in reply",
			"error", err,
			"payload", string(payload),
		)
	}

	accepted, rejected := guard(req.State, cmds)
	for _, r := range rejected {
		l.logger.Info("command filtered",
			"action", r.Command.Action,
			"reason", r.Reason,
		)
	}

	if text == "" && len(accepted) == 0 {
		text = FallbackReply
	}
	return &Reply{Text: text, Commands: accepted, Rejected: rejected}, nil
}

// Verify LLM implements Source at compile time.
var _ Source = (*LLM)(nil)
