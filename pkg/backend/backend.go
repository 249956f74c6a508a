// Package backend talks to the store's order service: the REST API that
// owns menus, prices and persisted orders.
//
// The kiosk keeps the customer's cart locally and only hands it to the
// order service at checkout. Submit runs the whole sequence: create an
// order, add each line with its ingredient diff, confirm and read back the
// receipt.
package backend

// Menu is a row of GET /menus/popular.
type Menu struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	PriceCents   int    `json:"price_cents,omitempty"`
	PopularRank  int    `json:"popular_rank,omitempty"`
	Price15Cents int    `json:"price_15_cents,omitempty"`
	Price30Cents int    `json:"price_30_cents,omitempty"`
}

// UnitPrice returns the menu price for a sandwich length.
func (m Menu) UnitPrice(sizeCM int) int {
	if sizeCM == 30 {
		return m.Price30Cents
	}
	if m.Price15Cents != 0 {
		return m.Price15Cents
	}
	return m.PriceCents
}

// Ingredient operations understood by the order service.
const (
	OpAdd     = "ADD"
	OpExclude = "EXCLUDE"
)

// IngredientsOps lists ingredients added to or excluded from a menu template.
type IngredientsOps struct {
	Add     []string `json:"ADD"`
	Exclude []string `json:"EXCLUDE"`
}

// Empty reports whether the item is the unmodified template.
func (o IngredientsOps) Empty() bool {
	return len(o.Add) == 0 && len(o.Exclude) == 0
}

// ItemRequest is the body of POST /orders/{id}/items.
type ItemRequest struct {
	MenuID         int            `json:"menu_id"`
	Quantity       int            `json:"quantity"`
	SizeCM         int            `json:"size_cm"`
	IngredientsOps IngredientsOps `json:"ingredients_ops"`
}

// Receipt statuses.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
)

// Receipt is the normalised form of GET /orders/{id}.
type Receipt struct {
	OrderID    int           `json:"order_id"`
	Status     string        `json:"status"`
	CreatedAt  string        `json:"created_at,omitempty"`
	TotalCents int           `json:"total_cents"`
	Items      []ReceiptItem `json:"items"`
}

// ReceiptItem is one normalised order line.
type ReceiptItem struct {
	ID             int            `json:"id"`
	MenuID         int            `json:"menu_id"`
	Name           string         `json:"name"`
	SizeCM         int            `json:"size_cm"`
	Quantity       int            `json:"quantity"`
	UnitPriceCents int            `json:"unit_price_cents"`
	IngredientsOps IngredientsOps `json:"ingredients_ops"`
}
