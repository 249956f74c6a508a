package order

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-kiosk/pkg/catalog"
)

// Result describes the outcome of applying one command.
type Result struct {
	Action  Action `json:"action"`
	Message string `json:"message"`
	OK      bool   `json:"ok"`
}

func success(a Action, format string, args ...any) Result {
	return Result{Action: a, Message: fmt.Sprintf(format, args...), OK: true}
}

func reject(a Action, msg string) Result {
	return Result{Action: a, Message: msg}
}

// Rejection messages shared by the reducer and the guard.
const (
	msgNoCurrentItem  = "No current item."
	msgItemInProgress = "Item already in progress."
	msgInvalidTarget  = "Invalid cart target."
	msgCartEmpty      = "Cart is empty."
	msgOrderClosed    = "Order is closed."
)

// Apply validates cmd against s and applies it in place. On any precondition
// failure s is left untouched and the Result carries the reason.
func Apply(s *State, cmd Command) Result {
	a := cmd.Action

	switch a {
	case ActionStartItem:
		if s.Status.Terminal() {
			return reject(a, msgOrderClosed)
		}
		if s.CurrentItem != nil {
			return reject(a, msgItemInProgress)
		}
		s.CurrentItem = NewItem()
		s.Status = StatusBuilding
		return success(a, "Started new item.")

	case ActionSelectMenu:
		if s.CurrentItem == nil {
			return reject(a, msgNoCurrentItem)
		}
		if cmd.Menu == "" {
			return reject(a, "Menu parameter missing.")
		}
		m, found := catalog.FindMenu(cmd.Menu)
		if !found {
			return reject(a, "Invalid menu.")
		}
		s.CurrentItem.resetTo(m)
		return success(a, "Menu set: %s", m.Name)

	case ActionSelectBread:
		if s.CurrentItem == nil {
			return reject(a, msgNoCurrentItem)
		}
		if !catalog.IsValidOption(cmd.Bread, catalog.SetBread) {
			return reject(a, "Bread parameter missing or invalid.")
		}
		s.CurrentItem.Bread = cmd.Bread
		return success(a, "Bread set: %s", cmd.Bread)

	case ActionSelectCheese:
		if s.CurrentItem == nil {
			return reject(a, msgNoCurrentItem)
		}
		if !catalog.IsValidOption(cmd.Cheese, catalog.SetCheese) {
			return reject(a, "Cheese parameter missing or invalid.")
		}
		s.CurrentItem.Cheese = cmd.Cheese
		return success(a, "Cheese set: %s", cmd.Cheese)

	case ActionAddVegetables:
		if s.CurrentItem == nil {
			return reject(a, msgNoCurrentItem)
		}
		if cmd.AddVegetables == nil {
			return reject(a, "Vegetables parameter missing.")
		}
		valid := catalog.FilterValid(cmd.AddVegetables, catalog.SetVegetables)
		s.CurrentItem.Vegetables = addUnique(s.CurrentItem.Vegetables, valid)
		return success(a, "Added vegetables: %s", strings.Join(valid, ", "))

	case ActionRemoveVegetables:
		if s.CurrentItem == nil {
			return reject(a, msgNoCurrentItem)
		}
		if cmd.RemoveVegetables == nil {
			return reject(a, "Vegetables parameter missing.")
		}
		s.CurrentItem.Vegetables = removeAll(s.CurrentItem.Vegetables, cmd.RemoveVegetables)
		return success(a, "Removed vegetables: %s", strings.Join(cmd.RemoveVegetables, ", "))

	case ActionAddSauce:
		if s.CurrentItem == nil {
			return reject(a, msgNoCurrentItem)
		}
		if cmd.AddSauces == nil {
			return reject(a, "Sauces parameter missing.")
		}
		valid := catalog.FilterValid(cmd.AddSauces, catalog.SetSauces)
		s.CurrentItem.Sauces = addUnique(s.CurrentItem.Sauces, valid)
		return success(a, "Added sauces: %s", strings.Join(valid, ", "))

	case ActionRemoveSauce:
		if s.CurrentItem == nil {
			return reject(a, msgNoCurrentItem)
		}
		if cmd.RemoveSauces == nil {
			return reject(a, "Sauces parameter missing.")
		}
		s.CurrentItem.Sauces = removeAll(s.CurrentItem.Sauces, cmd.RemoveSauces)
		return success(a, "Removed sauces: %s", strings.Join(cmd.RemoveSauces, ", "))

	case ActionSetQuantity:
		if s.CurrentItem == nil {
			return reject(a, msgNoCurrentItem)
		}
		if cmd.Quantity == nil || *cmd.Quantity <= 0 {
			return reject(a, "Invalid quantity.")
		}
		s.CurrentItem.Quantity = *cmd.Quantity
		return success(a, "Quantity set: %d", *cmd.Quantity)

	case ActionSetStep:
		if s.CurrentItem == nil {
			return reject(a, msgNoCurrentItem)
		}
		if !cmd.Step.Valid() {
			return reject(a, "Step parameter missing or invalid.")
		}
		s.CurrentItem.Step = cmd.Step
		return success(a, "Step set: %s", cmd.Step)

	case ActionAddToCart:
		if s.CurrentItem == nil || s.CurrentItem.Menu == "" {
			return reject(a, "No complete item.")
		}
		s.Cart = append(s.Cart, s.CurrentItem)
		s.CurrentItem = nil
		return success(a, "Item added to cart.")

	case ActionModifyCartItem:
		if !s.inBounds(cmd.Target) {
			return reject(a, msgInvalidTarget)
		}
		edited := s.Cart[*cmd.Target].Clone()
		applyEdit(edited, cmd)
		*s.Cart[*cmd.Target] = *edited
		return success(a, "Cart item %d modified.", *cmd.Target)

	case ActionRemoveFromCart:
		if !s.inBounds(cmd.Target) {
			return reject(a, msgInvalidTarget)
		}
		removed := s.Cart[*cmd.Target]
		s.Cart = append(s.Cart[:*cmd.Target], s.Cart[*cmd.Target+1:]...)
		return success(a, "Removed %s from cart.", removed.Menu)

	case ActionViewCart:
		return success(a, "Cart view requested.")

	case ActionHelp:
		return success(a, "Help requested.")

	case ActionConfirmOrder:
		if s.Status.Terminal() {
			return reject(a, msgOrderClosed)
		}
		if len(s.Cart) == 0 {
			return reject(a, msgCartEmpty)
		}
		s.Status = StatusReady
		return success(a, "Order ready for confirmation.")

	case ActionCompleteOrder:
		s.Status = StatusCompleted
		return success(a, "Order completed.")

	case ActionCancelOrder:
		s.Status = StatusCancelled
		return success(a, "Order cancelled.")

	default:
		return reject(a, fmt.Sprintf("Unknown action: %s", a))
	}
}

// applyEdit applies the optional fields of a modify_cart_item command.
// Invalid single values are ignored, list fields go through the same
// filter-then-merge as the current-item setters, and a menu change resets the
// build before any other field is applied.
func applyEdit(it *Item, cmd Command) {
	if cmd.Menu != "" {
		if m, found := catalog.FindMenu(cmd.Menu); found {
			it.resetTo(m)
		}
	}
	if catalog.IsValidOption(cmd.Bread, catalog.SetBread) {
		it.Bread = cmd.Bread
	}
	if catalog.IsValidOption(cmd.Cheese, catalog.SetCheese) {
		it.Cheese = cmd.Cheese
	}
	if cmd.AddVegetables != nil {
		it.Vegetables = addUnique(it.Vegetables, catalog.FilterValid(cmd.AddVegetables, catalog.SetVegetables))
	}
	if cmd.RemoveVegetables != nil {
		it.Vegetables = removeAll(it.Vegetables, cmd.RemoveVegetables)
	}
	if cmd.AddSauces != nil {
		it.Sauces = addUnique(it.Sauces, catalog.FilterValid(cmd.AddSauces, catalog.SetSauces))
	}
	if cmd.RemoveSauces != nil {
		it.Sauces = removeAll(it.Sauces, cmd.RemoveSauces)
	}
	if cmd.Quantity != nil && *cmd.Quantity > 0 {
		it.Quantity = *cmd.Quantity
	}
}

// ApplyAll applies cmds strictly in order. Each command sees the cumulative
// effect of the previous ones and failures never undo earlier successes.
func ApplyAll(s *State, cmds []Command) []Result {
	results := make([]Result, 0, len(cmds))
	for _, cmd := range cmds {
		results = append(results, Apply(s, cmd))
	}
	return results
}
