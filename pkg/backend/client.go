package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-kiosk/internal/httpc"
	"github.com/teslashibe/go-kiosk/pkg/order"
)

// Client is a REST client for the order service.
type Client struct {
	config  *Config
	http    *http.Client
	logger  *slog.Logger
	baseURL string
}

// New creates an order service client.
func New(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		config:  cfg,
		http:    httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "backend.client"),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// PopularMenus lists the menus the order service sells.
func (c *Client) PopularMenus(ctx context.Context) ([]Menu, error) {
	var menus []Menu
	if err := c.do(ctx, http.MethodGet, "/menus/popular", nil, &menus); err != nil {
		return nil, err
	}
	return menus, nil
}

// CreateOrder opens a new PENDING order and returns its id.
func (c *Client) CreateOrder(ctx context.Context) (int, error) {
	var resp struct {
		OrderID json.Number `json:"order_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders", nil, &resp); err != nil {
		return 0, err
	}
	id, err := resp.OrderID.Int64()
	if err != nil || id <= 0 {
		return 0, ErrNoOrderID
	}
	return int(id), nil
}

// AddItem appends a line to an order.
func (c *Client) AddItem(ctx context.Context, orderID int, item ItemRequest) error {
	if item.IngredientsOps.Add == nil {
		item.IngredientsOps.Add = []string{}
	}
	if item.IngredientsOps.Exclude == nil {
		item.IngredientsOps.Exclude = []string{}
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/items", orderID), item, nil)
}

// Confirm marks an order CONFIRMED.
func (c *Client) Confirm(ctx context.Context, orderID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/confirm", orderID), nil, nil)
}

// Receipt fetches and normalises an order.
func (c *Client) Receipt(ctx context.Context, orderID int) (*Receipt, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), nil, &raw); err != nil {
		return nil, err
	}
	r, err := NormalizeReceipt(raw)
	if err != nil {
		return nil, err
	}
	if r.OrderID == 0 {
		r.OrderID = orderID
	}
	return r, nil
}

// Submit places the cart as one order: it creates the order, adds every
// line with its ingredient diff, confirms it and returns the receipt.
//
// pending is the id carried by a *SubmitError from an earlier attempt for
// the same cart, or 0. A pending order that is still PENDING is completed
// with the lines it is missing; one already CONFIRMED is returned as is. A
// pending order whose lines no longer match the cart is abandoned and a new
// order is created.
func (c *Client) Submit(ctx context.Context, pending int, cart []*order.Item) (*Receipt, error) {
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}

	lines, err := c.lines(ctx, cart)
	if err != nil {
		return nil, err
	}

	orderID, placed := 0, 0
	if pending > 0 {
		r, err := c.Receipt(ctx, pending)
		if err != nil {
			return nil, &SubmitError{OrderID: pending, Err: err}
		}
		n, ok := matched(r.Items, lines)
		switch {
		case ok && r.Status == StatusConfirmed && n == len(lines):
			return r, nil
		case ok && r.Status == StatusPending:
			orderID, placed = pending, n
		default:
			c.logger.Warn("abandoning pending order",
				"order_id", pending,
				"status", r.Status,
				"lines", len(r.Items),
			)
		}
	}

	if orderID == 0 {
		if orderID, err = c.CreateOrder(ctx); err != nil {
			return nil, err
		}
	}
	log := c.logger.With("order_id", orderID)

	for _, line := range lines[placed:] {
		if err := c.AddItem(ctx, orderID, line); err != nil {
			return nil, &SubmitError{OrderID: orderID, Err: err}
		}
	}
	if err := c.Confirm(ctx, orderID); err != nil {
		return nil, &SubmitError{OrderID: orderID, Err: err}
	}

	receipt, err := c.Receipt(ctx, orderID)
	if err != nil {
		return nil, &SubmitError{OrderID: orderID, Err: err}
	}
	log.Info("order submitted",
		"lines", len(lines),
		"resumed", placed,
		"total_cents", receipt.TotalCents,
		"status", receipt.Status,
	)
	return receipt, nil
}

// lines resolves cart items to order lines by menu name.
func (c *Client) lines(ctx context.Context, cart []*order.Item) ([]ItemRequest, error) {
	menus, err := c.PopularMenus(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]Menu, len(menus))
	for _, m := range menus {
		byName[m.Name] = m
	}

	lines := make([]ItemRequest, 0, len(cart))
	for i, it := range cart {
		m, ok := byName[it.Menu]
		if !ok {
			return nil, fmt.Errorf("%w: cart item %d: %q", ErrUnknownMenu, i, it.Menu)
		}
		lines = append(lines, ItemRequest{
			MenuID:         m.ID,
			Quantity:       max(it.Quantity, 1),
			SizeCM:         c.config.SizeCM,
			IngredientsOps: IngredientOps(it),
		})
	}
	return lines, nil
}

// matched reports how many leading lines an existing order already holds.
// ok is false when the order has lines the cart does not start with.
func matched(items []ReceiptItem, lines []ItemRequest) (n int, ok bool) {
	if len(items) > len(lines) {
		return 0, false
	}
	for i, it := range items {
		l := lines[i]
		if it.MenuID != l.MenuID || it.Quantity != l.Quantity || it.SizeCM != l.SizeCM {
			return 0, false
		}
	}
	return len(items), true
}

// Health checks that the order service answers.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.PopularMenus(ctx)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		err := httpc.DoJSON(ctx, c.http, method, c.baseURL+path, in, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = apiError(method, path, err)
		// POSTs are not idempotent and are never retried.
		if method != http.MethodGet {
			return lastErr
		}
		var apiErr *APIError
		if errors.As(lastErr, &apiErr) && !apiErr.IsRetryable() {
			return lastErr
		}
		c.logger.Warn("retrying request",
			"method", method,
			"path", path,
			"attempt", attempt+1,
			"error", lastErr,
		)
	}
	return lastErr
}
