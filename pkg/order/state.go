package order

import (
	"fmt"
	"slices"
	"strings"

	"github.com/teslashibe/go-kiosk/pkg/catalog"
)

// Status is the coarse lifecycle tag of an ordering session.
type Status string

const (
	StatusInit      Status = "init"
	StatusBuilding  Status = "building"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is defined out of s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Step is the UI sub-stage an item is at. The reducer stores it but never
// enforces it.
type Step string

const (
	StepBread      Step = "bread"
	StepCheese     Step = "cheese"
	StepVegetables Step = "vegetables"
	StepSauces     Step = "sauces"
	StepQuantity   Step = "quantity"
	StepDone       Step = "done"
)

// Valid reports whether s is one of the known steps.
func (s Step) Valid() bool {
	switch s {
	case StepBread, StepCheese, StepVegetables, StepSauces, StepQuantity, StepDone:
		return true
	}
	return false
}

// Item is a sandwich being built or already committed to the cart.
// Vegetables and Sauces behave as insertion-ordered sets.
type Item struct {
	Menu       string   `json:"menu"`
	Bread      string   `json:"bread"`
	Cheese     string   `json:"cheese"`
	Vegetables []string `json:"vegetables"`
	Sauces     []string `json:"sauces"`
	Quantity   int      `json:"quantity"`
	Step       Step     `json:"step"`
}

// NewItem returns an empty item at the first step with quantity 1.
func NewItem() *Item {
	return &Item{
		Vegetables: []string{},
		Sauces:     []string{},
		Quantity:   1,
		Step:       StepBread,
	}
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	c := *it
	c.Vegetables = cloneList(it.Vegetables)
	c.Sauces = cloneList(it.Sauces)
	return &c
}

// Line renders the item the way cart listings show it:
// "햄 - 위트, 아메리칸치즈, 양상추, 피클, 허니 머스타드 (x2)".
func (it *Item) Line() string {
	parts := []string{it.Bread, it.Cheese}
	parts = append(parts, it.Vegetables...)
	parts = append(parts, it.Sauces...)
	parts = slices.DeleteFunc(parts, func(p string) bool { return p == "" })
	return fmt.Sprintf("%s - %s (x%d)", it.Menu, strings.Join(parts, ", "), it.Quantity)
}

// resetTo overwrites the item's build with the template defaults.
func (it *Item) resetTo(m catalog.Menu) {
	it.Menu = m.Name
	it.Bread = m.DefaultBread
	it.Cheese = m.DefaultCheese
	it.Vegetables = cloneList(m.DefaultVegetables)
	it.Sauces = cloneList(m.DefaultSauces)
}

// State is the per-session order state.
type State struct {
	Cart        []*Item `json:"cart"`
	CurrentItem *Item   `json:"currentItem"`
	Status      Status  `json:"status"`
}

// NewState returns a fresh session state: empty cart, no current item.
func NewState() *State {
	return &State{
		Cart:   []*Item{},
		Status: StatusInit,
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := &State{
		Cart:        make([]*Item, len(s.Cart)),
		CurrentItem: s.CurrentItem.Clone(),
		Status:      s.Status,
	}
	for i, it := range s.Cart {
		c.Cart[i] = it.Clone()
	}
	return c
}

// Summary renders the state for logs and terminal output.
func (s *State) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "status: %s\n", s.Status)
	if s.CurrentItem != nil {
		fmt.Fprintf(&b, "current (%s): %s\n", s.CurrentItem.Step, s.CurrentItem.Line())
	}
	if len(s.Cart) == 0 {
		b.WriteString("cart: empty\n")
		return b.String()
	}
	b.WriteString("cart:\n")
	for i, it := range s.Cart {
		fmt.Fprintf(&b, "  [%d] %s\n", i, it.Line())
	}
	return b.String()
}

// Normalize repairs fields a decoded snapshot may be missing so the state
// satisfies the same shape NewState produces.
func (s *State) Normalize() {
	if s.Cart == nil {
		s.Cart = []*Item{}
	}
	if s.Status == "" {
		s.Status = StatusInit
	}
	s.Cart = slices.DeleteFunc(s.Cart, func(it *Item) bool { return it == nil || it.Menu == "" })
	for _, it := range s.Cart {
		normalizeItem(it)
	}
	if s.CurrentItem != nil {
		normalizeItem(s.CurrentItem)
	}
}

// inBounds reports whether target addresses an existing cart position.
func (s *State) inBounds(target *int) bool {
	return target != nil && *target >= 0 && *target < len(s.Cart)
}

func normalizeItem(it *Item) {
	if it.Vegetables == nil {
		it.Vegetables = []string{}
	}
	if it.Sauces == nil {
		it.Sauces = []string{}
	}
	if it.Quantity <= 0 {
		it.Quantity = 1
	}
	if !it.Step.Valid() {
		it.Step = StepBread
	}
}

func cloneList(l []string) []string {
	if l == nil {
		return []string{}
	}
	return slices.Clone(l)
}

// addUnique appends each of items not already present, keeping order.
func addUnique(list, items []string) []string {
	for _, v := range items {
		if !slices.Contains(list, v) {
			list = append(list, v)
		}
	}
	return list
}

// removeAll drops every named entry. Names that are absent are ignored.
func removeAll(list, items []string) []string {
	if len(items) == 0 {
		return list
	}
	return slices.DeleteFunc(list, func(v string) bool { return slices.Contains(items, v) })
}
