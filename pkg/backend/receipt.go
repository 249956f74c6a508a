package backend

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// number decodes a JSON number, numeric string or null.
type number struct {
	v   int
	set bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n.v, n.set = int(f), true
	return nil
}

func (n number) or(def int) int {
	if n.set {
		return n.v
	}
	return def
}

type rawOps struct {
	Add     []string `json:"ADD"`
	Exclude []string `json:"EXCLUDE"`
}

type rawItem struct {
	ID             number  `json:"id"`
	MenuID         number  `json:"menu_id"`
	Name           string  `json:"name"`
	SizeCM         number  `json:"size_cm"`
	Quantity       number  `json:"quantity"`
	UnitPriceCents number  `json:"unit_price_cents"`
	PriceCents     number  `json:"price_cents"`
	IngredientsOps *rawOps `json:"ingredients_ops"`
}

type rawReceipt struct {
	OrderID    number     `json:"order_id"`
	Status     string     `json:"status"`
	CreatedAt  *string    `json:"created_at"`
	TotalCents number     `json:"total_cents"`
	Items      *[]rawItem `json:"items"`
	OrderItems *[]rawItem `json:"order_items"`
	Data       *struct {
		Items *[]rawItem `json:"items"`
	} `json:"data"`
}

// NormalizeReceipt accepts the order service's receipt variants. Lines are
// read from items, order_items or data.items, in that order. Missing line
// ids fall back to the 1-based position, sizes other than 30 become 15,
// quantities are at least 1, the unit price falls back to price_cents, and
// a missing or zero total is summed from the lines. Status is PENDING
// unless it reads CONFIRMED or CANCELLED.
func NormalizeReceipt(data []byte) (*Receipt, error) {
	var raw rawReceipt
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("backend: decode receipt: %w", err)
	}

	var items []rawItem
	switch {
	case raw.Items != nil:
		items = *raw.Items
	case raw.OrderItems != nil:
		items = *raw.OrderItems
	case raw.Data != nil && raw.Data.Items != nil:
		items = *raw.Data.Items
	}

	r := &Receipt{
		OrderID: raw.OrderID.or(0),
		Status:  normalizeStatus(raw.Status),
		Items:   make([]ReceiptItem, 0, len(items)),
	}
	if raw.CreatedAt != nil {
		r.CreatedAt = *raw.CreatedAt
	}

	sum := 0
	for i, it := range items {
		line := normalizeItem(it, i+1)
		sum += line.UnitPriceCents * line.Quantity
		r.Items = append(r.Items, line)
	}

	r.TotalCents = raw.TotalCents.or(0)
	if r.TotalCents == 0 {
		r.TotalCents = sum
	}
	return r, nil
}

func normalizeItem(raw rawItem, fallbackID int) ReceiptItem {
	size := 15
	if raw.SizeCM.or(15) == 30 {
		size = 30
	}
	price := raw.UnitPriceCents.or(0)
	if price == 0 {
		price = raw.PriceCents.or(0)
	}
	ops := IngredientsOps{Add: []string{}, Exclude: []string{}}
	if raw.IngredientsOps != nil {
		if raw.IngredientsOps.Add != nil {
			ops.Add = raw.IngredientsOps.Add
		}
		if raw.IngredientsOps.Exclude != nil {
			ops.Exclude = raw.IngredientsOps.Exclude
		}
	}
	return ReceiptItem{
		ID:             raw.ID.or(fallbackID),
		MenuID:         raw.MenuID.or(0),
		Name:           raw.Name,
		SizeCM:         size,
		Quantity:       max(raw.Quantity.or(1), 1),
		UnitPriceCents: price,
		IngredientsOps: ops,
	}
}

func normalizeStatus(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case StatusConfirmed:
		return StatusConfirmed
	case StatusCancelled:
		return StatusCancelled
	}
	return StatusPending
}
