// Package web serves the kiosk HTTP API and the per-session status socket.
package web

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-kiosk/pkg/hub"
	"github.com/teslashibe/go-kiosk/pkg/kiosk"
	"github.com/teslashibe/go-kiosk/pkg/session"
	"github.com/teslashibe/go-kiosk/pkg/stt"
)

// MaxUploadBytes bounds request bodies, mostly recorded audio.
const MaxUploadBytes = 10 << 20

// Server is the kiosk web server
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	kiosk       *kiosk.Service
	transcriber stt.Transcriber
	staticDir   string

	// Hub for per-session snapshot broadcast
	statusHub *hub.Hub

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address, ":8080" by default.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithTranscriber enables the transcribe endpoint.
func WithTranscriber(t stt.Transcriber) Option {
	return func(s *Server) { s.transcriber = t }
}

// WithStaticDir serves the kiosk front end from dir.
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates the web server and subscribes it to session updates.
func NewServer(svc *kiosk.Service, opts ...Option) *Server {
	s := &Server{
		addr:   ":8080",
		kiosk:  svc,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web.server")
	s.statusHub = hub.New("status", s.logger)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	app := fiber.New(fiber.Config{
		AppName:               "Kiosk",
		DisableStartupMessage: true,
		BodyLimit:             MaxUploadBytes + 1<<20,
	})

	app.Use(recover.New())
	// CORS for the kiosk front end during development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/menu", s.handleMenu)
	api.Post("/sessions", s.handleCreateSession)
	api.Get("/sessions/:id", s.handleGetSession)
	api.Delete("/sessions/:id", s.handleDeleteSession)
	api.Post("/sessions/:id/commands", s.handleCommands)
	api.Post("/sessions/:id/chat", s.handleChat)
	api.Post("/sessions/:id/transcribe", s.handleTranscribe)
	api.Post("/sessions/:id/checkout", s.handleCheckout)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/sessions/:id", websocket.New(s.handleSessionWS))

	if s.staticDir != "" {
		app.Static("/", s.staticDir)
	}

	svc.OnUpdate(func(snap session.Snapshot) {
		if err := s.statusHub.BroadcastJSON(snap.ID, snap); err != nil {
			s.logger.Error("broadcast snapshot", "session_id", snap.ID, "error", err)
		}
	})

	go s.statusHub.Run(s.ctx)

	s.app = app
	return s
}

// App returns the underlying fiber app so other packages can mount routes.
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the status hub.
func (s *Server) Hub() *hub.Hub {
	return s.statusHub
}

// Start listens on the configured address and blocks.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server stopped", "error", err)
		}
	}()
}

// Shutdown stops the hub and gracefully stops the web server
func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.Shutdown()
}
