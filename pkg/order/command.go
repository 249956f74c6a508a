package order

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Action is the kind tag of a Command.
type Action string

const (
	ActionStartItem        Action = "start_item"
	ActionSelectMenu       Action = "select_menu"
	ActionSelectBread      Action = "select_bread"
	ActionSelectCheese     Action = "select_cheese"
	ActionAddVegetables    Action = "add_vegetables"
	ActionRemoveVegetables Action = "remove_vegetables"
	ActionAddSauce         Action = "add_sauce"
	ActionRemoveSauce      Action = "remove_sauce"
	ActionSetQuantity      Action = "set_quantity"
	ActionSetStep          Action = "set_step"
	ActionAddToCart        Action = "add_to_cart"
	ActionModifyCartItem   Action = "modify_cart_item"
	ActionRemoveFromCart   Action = "remove_from_cart"
	ActionViewCart         Action = "view_cart"
	ActionConfirmOrder     Action = "confirm_order"
	ActionCompleteOrder    Action = "complete_order"
	ActionCancelOrder      Action = "cancel_order"
	ActionHelp             Action = "help"
)

// Actions lists the recognised vocabulary in a stable order.
var Actions = []Action{
	ActionStartItem, ActionSelectMenu, ActionSelectBread, ActionSelectCheese,
	ActionAddVegetables, ActionRemoveVegetables, ActionAddSauce, ActionRemoveSauce,
	ActionSetQuantity, ActionSetStep, ActionAddToCart, ActionModifyCartItem,
	ActionRemoveFromCart, ActionViewCart, ActionConfirmOrder, ActionCompleteOrder,
	ActionCancelOrder, ActionHelp,
}

// Known reports whether a is part of the recognised vocabulary.
func (a Action) Known() bool {
	for _, k := range Actions {
		if a == k {
			return true
		}
	}
	return false
}

// needsCurrentItem lists the actions the batch guard refuses when no item is
// being composed.
func (a Action) needsCurrentItem() bool {
	switch a {
	case ActionSelectBread, ActionSelectCheese,
		ActionAddVegetables, ActionRemoveVegetables,
		ActionAddSauce, ActionRemoveSauce,
		ActionSetQuantity, ActionAddToCart:
		return true
	}
	return false
}

// Command is one mutation request. Only the fields relevant to Action are
// read; the rest are ignored. Quantity and Target are pointers so that an
// absent field can be told apart from zero.
type Command struct {
	Action           Action   `json:"action"`
	Menu             string   `json:"menu,omitempty"`
	Bread            string   `json:"bread,omitempty"`
	Cheese           string   `json:"cheese,omitempty"`
	AddVegetables    []string `json:"addVegetables,omitempty"`
	RemoveVegetables []string `json:"removeVegetables,omitempty"`
	AddSauces        []string `json:"addSauces,omitempty"`
	RemoveSauces     []string `json:"removeSauces,omitempty"`
	Quantity         *int     `json:"quantity,omitempty"`
	Target           *int     `json:"target,omitempty"`
	Step             Step     `json:"step,omitempty"`
}

// Command constructors used by the rule-based parser, the UI and tests.

func StartItem() Command               { return Command{Action: ActionStartItem} }
func SelectMenu(name string) Command   { return Command{Action: ActionSelectMenu, Menu: name} }
func SelectBread(name string) Command  { return Command{Action: ActionSelectBread, Bread: name} }
func SelectCheese(name string) Command { return Command{Action: ActionSelectCheese, Cheese: name} }
func AddToCart() Command               { return Command{Action: ActionAddToCart} }
func ViewCart() Command                { return Command{Action: ActionViewCart} }
func ConfirmOrder() Command            { return Command{Action: ActionConfirmOrder} }
func CompleteOrder() Command           { return Command{Action: ActionCompleteOrder} }
func CancelOrder() Command             { return Command{Action: ActionCancelOrder} }
func SetStep(s Step) Command           { return Command{Action: ActionSetStep, Step: s} }

func AddVegetables(names ...string) Command {
	return Command{Action: ActionAddVegetables, AddVegetables: names}
}

func RemoveVegetables(names ...string) Command {
	return Command{Action: ActionRemoveVegetables, RemoveVegetables: names}
}

func AddSauces(names ...string) Command {
	return Command{Action: ActionAddSauce, AddSauces: names}
}

func RemoveSauces(names ...string) Command {
	return Command{Action: ActionRemoveSauce, RemoveSauces: names}
}

func SetQuantity(n int) Command {
	return Command{Action: ActionSetQuantity, Quantity: &n}
}

func RemoveFromCart(target int) Command {
	return Command{Action: ActionRemoveFromCart, Target: &target}
}

// ModifyCartItem returns an edit of the cart entry at target with no fields
// set; callers fill in the fields they want changed.
func ModifyCartItem(target int) Command {
	return Command{Action: ActionModifyCartItem, Target: &target}
}

// wireCommand is the lenient decoding shape. Language models are sloppy about
// types, so list fields accept a bare string and numbers may arrive as 2.0.
type wireCommand struct {
	Action           *string     `json:"action"`
	Menu             string      `json:"menu"`
	Bread            string      `json:"bread"`
	Cheese           string      `json:"cheese"`
	AddVegetables    stringList  `json:"addVegetables"`
	RemoveVegetables stringList  `json:"removeVegetables"`
	AddSauces        stringList  `json:"addSauces"`
	RemoveSauces     stringList  `json:"removeSauces"`
	Quantity         json.Number `json:"quantity"`
	Target           json.Number `json:"target"`
	Step             string      `json:"step"`
}

type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*l = nil
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err == nil {
		*l = many
		return nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err != nil {
		return fmt.Errorf("expected string or string array")
	}
	*l = []string{one}
	return nil
}

// UnmarshalJSON decodes a command leniently. A missing or empty action is an
// error; an unrecognised action name is not (the reducer reports it).
func (c *Command) UnmarshalJSON(b []byte) error {
	var w wireCommand
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Action == nil || *w.Action == "" {
		return errors.New("missing action")
	}

	quantity, err := optionalInt(w.Quantity)
	if err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	target, err := optionalInt(w.Target)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}

	*c = Command{
		Action:           Action(*w.Action),
		Menu:             w.Menu,
		Bread:            w.Bread,
		Cheese:           w.Cheese,
		AddVegetables:    w.AddVegetables,
		RemoveVegetables: w.RemoveVegetables,
		AddSauces:        w.AddSauces,
		RemoveSauces:     w.RemoveSauces,
		Quantity:         quantity,
		Target:           target,
		Step:             Step(w.Step),
	}
	return nil
}

func optionalInt(n json.Number) (*int, error) {
	if n == "" {
		return nil, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil, fmt.Errorf("%s is not an integer", n)
	}
	v := int(f)
	return &v, nil
}

// ParseCommands decodes the command payload an intent source produced. It
// accepts an array of commands, a single command object, or nothing at all
// ("", "{}", "[]", "null" all mean zero commands).
//
// Malformed elements are skipped; the returned error joins one error per
// skipped element, so a non-nil error may accompany usable commands. Invalid
// JSON yields no commands.
func ParseCommands(data []byte) ([]Command, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	switch data[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("order: parse commands: %w", err)
		}
		var (
			cmds []Command
			errs []error
		)
		for i, r := range raw {
			var c Command
			if err := json.Unmarshal(r, &c); err != nil {
				errs = append(errs, fmt.Errorf("order: command %d: %w", i, err))
				continue
			}
			cmds = append(cmds, c)
		}
		return cmds, errors.Join(errs...)

	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(data, &probe); err != nil {
			return nil, fmt.Errorf("order: parse commands: %w", err)
		}
		if len(probe) == 0 {
			return nil, nil
		}
		var c Command
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("order: command 0: %w", err)
		}
		return []Command{c}, nil

	default:
		return nil, fmt.Errorf("order: parse commands: expected object or array")
	}
}
