package web

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-kiosk/pkg/backend"
	"github.com/teslashibe/go-kiosk/pkg/catalog"
	"github.com/teslashibe/go-kiosk/pkg/hub"
	"github.com/teslashibe/go-kiosk/pkg/kiosk"
	"github.com/teslashibe/go-kiosk/pkg/order"
	"github.com/teslashibe/go-kiosk/pkg/session"
	"github.com/teslashibe/go-kiosk/pkg/stt"
)

// MenuResponse is the catalog as served to the kiosk screen.
type MenuResponse struct {
	Menus      []catalog.Menu `json:"menus"`
	Breads     []string       `json:"breads"`
	Cheeses    []string       `json:"cheeses"`
	Vegetables []string       `json:"vegetables"`
	Sauces     []string       `json:"sauces"`
}

// ChatRequest is the body of the chat endpoint.
type ChatRequest struct {
	Text string `json:"text"`
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var (
		backendErr *backend.APIError
		sttErr     *stt.APIError
	)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, kiosk.ErrEmptyText),
		errors.Is(err, stt.ErrEmptyAudio),
		errors.Is(err, stt.ErrUnsupportedMedia):
		return fiber.StatusBadRequest
	case errors.Is(err, stt.ErrTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, kiosk.ErrNotReady):
		return fiber.StatusConflict
	case errors.Is(err, session.ErrClosed):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &sttErr) && sttErr.IsRateLimited():
		return fiber.StatusServiceUnavailable
	case errors.As(err, &backendErr), errors.As(err, &sttErr),
		errors.Is(err, backend.ErrUnknownMenu), errors.Is(err, backend.ErrNoOrderID):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"error", err,
		)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// handleHealth reports liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"clients": s.statusHub.ClientCount(""),
	})
}

// handleMenu returns the catalog
func (s *Server) handleMenu(c *fiber.Ctx) error {
	return c.JSON(MenuResponse{
		Menus:      catalog.Menus(),
		Breads:     catalog.Options(catalog.SetBread),
		Cheeses:    catalog.Options(catalog.SetCheese),
		Vegetables: catalog.Options(catalog.SetVegetables),
		Sauces:     catalog.Options(catalog.SetSauces),
	})
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	snap, err := s.kiosk.Create(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(snap)
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	snap, err := s.kiosk.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(snap)
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	if err := s.kiosk.Delete(c.UserContext(), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleCommands applies one command or an array of commands
func (s *Server) handleCommands(c *fiber.Ctx) error {
	cmds, parseErr := order.ParseCommands(c.Body())
	if parseErr != nil && len(cmds) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": parseErr.Error()})
	}

	res, err := s.kiosk.Execute(c.UserContext(), c.Params("id"), cmds)
	if err != nil {
		return s.fail(c, err)
	}
	if parseErr != nil {
		return c.JSON(fiber.Map{
			"results":  res.Results,
			"rejected": res.Rejected,
			"state":    res.State,
			"warnings": parseErr.Error(),
		})
	}
	return c.JSON(res)
}

// handleChat runs one conversational turn
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	res, err := s.kiosk.Turn(c.UserContext(), c.Params("id"), req.Text)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(res)
}

// handleTranscribe converts an uploaded recording to text, and with
// ?turn=1 runs the text as a turn.
func (s *Server) handleTranscribe(c *fiber.Ctx) error {
	if s.transcriber == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "transcription not configured"})
	}
	id := c.Params("id")
	if _, err := s.kiosk.Get(c.UserContext(), id); err != nil {
		return s.fail(c, err)
	}

	fh, err := c.FormFile("file")
	if err != nil || fh.Filename == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "filename missing"})
	}
	contentType := fh.Header.Get("Content-Type")
	if !stt.Supported(contentType) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "not audio/video: content_type=" + contentType})
	}
	f, err := fh.Open()
	if err != nil {
		return s.fail(c, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		return s.fail(c, err)
	}
	if len(data) > MaxUploadBytes {
		return s.fail(c, stt.ErrTooLarge)
	}

	tr, err := s.transcriber.Transcribe(c.UserContext(), &stt.Audio{
		Data:        data,
		Filename:    fh.Filename,
		ContentType: contentType,
	})
	if err != nil {
		return s.fail(c, err)
	}

	if c.Query("turn") != "1" {
		return c.JSON(fiber.Map{"text": tr.Text})
	}
	res, err := s.kiosk.Turn(c.UserContext(), id, tr.Text)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"text": tr.Text, "turn": res})
}

func (s *Server) handleCheckout(c *fiber.Ctx) error {
	res, err := s.kiosk.Checkout(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(res)
}

// handleSessionWS streams snapshots of one session, starting with the
// current one
func (s *Server) handleSessionWS(c *websocket.Conn) {
	id := c.Params("id")
	snap, err := s.kiosk.Get(s.ctx, id)
	if err != nil {
		c.WriteJSON(fiber.Map{"error": err.Error()})
		c.Close()
		return
	}

	initial, err := json.Marshal(snap)
	if err != nil {
		c.Close()
		return
	}
	client := hub.NewClient(s.statusHub, c, id, hub.NewJSONMessage(id, initial))
	client.Run()
}
