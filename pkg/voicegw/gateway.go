// Package voicegw streams kiosk voice turns over a websocket.
//
// The client sends the recorded utterance as binary frames, then a text
// frame {"type":"end","contentType":"audio/webm"}. The gateway transcribes
// the buffer, runs it as a kiosk turn and answers with JSON messages and,
// when speech is enabled, one binary frame of synthesized audio:
//
//	-> binary ... binary
//	-> {"type":"end","contentType":"audio/webm;codecs=opus"}
//	<- {"type":"transcript","text":"햄 주세요"}
//	<- {"type":"reply","reply":"...","state":{...}}
//	<- {"type":"audio","contentType":"audio/mpeg"}
//	<- binary
//
// {"type":"reset"} drops the buffered audio. Replies without speech carry
// the turn's latency metrics.
package voicegw

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-kiosk/pkg/kiosk"
	"github.com/teslashibe/go-kiosk/pkg/order"
	"github.com/teslashibe/go-kiosk/pkg/session"
	"github.com/teslashibe/go-kiosk/pkg/stt"
)

// DefaultMaxBytes bounds the audio buffered for one utterance. A single
// frame larger than this closes the socket with CloseMessageTooBig.
const DefaultMaxBytes = 10 << 20

// Message types.
const (
	TypeEnd        = "end"
	TypeReset      = "reset"
	TypeTranscript = "transcript"
	TypeReply      = "reply"
	TypeAudio      = "audio"
	TypeError      = "error"
)

// ClientMessage is a text frame sent by the kiosk.
type ClientMessage struct {
	Type        string `json:"type"`
	ContentType string `json:"contentType,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

// ServerMessage is a text frame sent to the kiosk.
type ServerMessage struct {
	Type        string            `json:"type"`
	Text        string            `json:"text,omitempty"`
	Reply       string            `json:"reply,omitempty"`
	State       *session.Snapshot `json:"state,omitempty"`
	Results     []order.Result    `json:"results,omitempty"`
	Rejected    []order.Rejection `json:"rejected,omitempty"`
	ContentType string            `json:"contentType,omitempty"`
	Metrics     *Metrics          `json:"metrics,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Gateway serves /ws/voice/:id.
type Gateway struct {
	kiosk       *kiosk.Service
	transcriber stt.Transcriber
	maxBytes    int
	metrics     *MetricsCollector
	logger      *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMaxBytes bounds the buffered audio per utterance.
func WithMaxBytes(n int) Option {
	return func(g *Gateway) { g.maxBytes = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New creates a gateway.
func New(svc *kiosk.Service, t stt.Transcriber, opts ...Option) *Gateway {
	g := &Gateway{
		kiosk:       svc,
		transcriber: t,
		maxBytes:    DefaultMaxBytes,
		metrics:     NewMetricsCollector(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "voicegw.gateway")
	return g
}

// Metrics returns the gateway's latency collector.
func (g *Gateway) Metrics() *MetricsCollector {
	return g.metrics
}

// RegisterRoutes mounts the voice socket and its metrics endpoint.
func (g *Gateway) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/voice", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/voice/:id", websocket.New(g.handle))

	app.Get("/api/voice/metrics", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"turns":   g.metrics.Turns(),
			"average": g.metrics.Average(),
		})
	})
}

// conn wraps one voice socket. Only the handler goroutine writes to it.
type conn struct {
	ws *websocket.Conn
}

func (c *conn) send(m ServerMessage) error {
	return c.ws.WriteJSON(m)
}

func (c *conn) fail(err error) error {
	return c.send(ServerMessage{Type: TypeError, Error: err.Error()})
}

// frame is one message read from the socket.
type frame struct {
	mt   int
	data []byte
}

// controlSlack is the read allowance above maxBytes for text frames.
const controlSlack = 4 << 10

func (g *Gateway) handle(ws *websocket.Conn) {
	id := ws.Params("id")
	log := g.logger.With("session_id", id)
	c := &conn{ws: ws}

	// ctx is cancelled once the client goes away so in-flight
	// transcription and model calls stop.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := g.kiosk.Get(ctx, id); err != nil {
		c.fail(err)
		ws.Close()
		return
	}
	log.Info("voice client connected")
	defer log.Info("voice client disconnected")

	ws.SetReadLimit(int64(g.maxBytes) + controlSlack)
	frames := make(chan frame, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(frames)
		defer cancel()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				log.Debug("voice read ended", "error", err)
				return
			}
			select {
			case frames <- frame{mt: mt, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}()
	// The conn is recycled once handle returns, so the reader must be gone.
	defer func() {
		cancel()
		ws.Close()
		<-done
	}()

	var (
		buf []byte
		n   int
	)
	for f := range frames {
		switch f.mt {
		case websocket.BinaryMessage:
			if len(buf)+len(f.data) > g.maxBytes {
				buf, n = nil, 0
				if c.fail(stt.ErrTooLarge) != nil {
					return
				}
				continue
			}
			buf = append(buf, f.data...)
			n++

		case websocket.TextMessage:
			var msg ClientMessage
			if err := json.Unmarshal(f.data, &msg); err != nil {
				if c.fail(errors.New("invalid message")) != nil {
					return
				}
				continue
			}

			switch msg.Type {
			case TypeReset:
				buf, n = nil, 0
				if c.send(ServerMessage{Type: TypeReset}) != nil {
					return
				}
			case TypeEnd:
				audio := &stt.Audio{Data: buf, Filename: msg.Filename, ContentType: msg.ContentType}
				if audio.ContentType == "" {
					audio.ContentType = "audio/webm"
				}
				t := g.metrics.Begin(n, len(buf))
				buf, n = nil, 0
				if err := g.turn(ctx, c, id, audio, t); err != nil {
					log.Warn("voice turn write failed", "error", err)
					return
				}
			default:
				if c.fail(errors.New("unknown message type: "+msg.Type)) != nil {
					return
				}
			}
		}
	}
}

// turn runs one utterance. Only write errors are returned; processing
// errors are reported to the client.
func (g *Gateway) turn(ctx context.Context, c *conn, id string, audio *stt.Audio, t *Turn) error {
	tr, err := g.transcriber.Transcribe(ctx, audio)
	if err != nil {
		g.logger.Warn("transcription failed", "session_id", id, "error", err)
		return c.fail(err)
	}
	t.MarkTranscript()
	if err := c.send(ServerMessage{Type: TypeTranscript, Text: tr.Text}); err != nil {
		return err
	}
	if tr.Text == "" {
		t.Done()
		return nil
	}

	res, err := g.kiosk.Turn(ctx, id, tr.Text)
	if err != nil {
		return c.fail(err)
	}
	t.MarkReply()

	reply := ServerMessage{
		Type:     TypeReply,
		Text:     tr.Text,
		Reply:    res.Reply,
		State:    &res.State,
		Results:  res.Results,
		Rejected: res.Rejected,
	}
	if len(res.Audio) == 0 {
		m := t.Done()
		reply.Metrics = &m
		return c.send(reply)
	}

	if err := c.send(reply); err != nil {
		return err
	}
	if err := c.send(ServerMessage{Type: TypeAudio, ContentType: res.AudioType}); err != nil {
		return err
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, res.Audio); err != nil {
		return err
	}
	t.MarkAudio()
	m := t.Done()
	g.logger.Info("voice turn", "session_id", id, "latency", m.FormatLatency())
	return nil
}
