package backend

import (
	"slices"

	"github.com/teslashibe/go-kiosk/pkg/catalog"
	"github.com/teslashibe/go-kiosk/pkg/order"
)

// IngredientOps diffs an item against its menu template. Non-default bread,
// cheese, vegetables and sauces are ADDed; template vegetables and sauces
// the customer dropped are EXCLUDEd. An item whose menu is not in the
// catalog reports every ingredient as ADD.
func IngredientOps(it *order.Item) IngredientsOps {
	ops := IngredientsOps{Add: []string{}, Exclude: []string{}}
	if it == nil {
		return ops
	}

	tmpl, ok := catalog.FindMenu(it.Menu)
	if !ok {
		all := []string{it.Bread, it.Cheese}
		all = append(all, it.Vegetables...)
		all = append(all, it.Sauces...)
		for _, v := range all {
			if v != "" {
				ops.Add = append(ops.Add, v)
			}
		}
		return ops
	}

	if it.Bread != "" && it.Bread != tmpl.DefaultBread {
		ops.Add = append(ops.Add, it.Bread)
	}
	if it.Cheese != "" && it.Cheese != tmpl.DefaultCheese {
		ops.Add = append(ops.Add, it.Cheese)
	}
	diff(&ops, tmpl.DefaultVegetables, it.Vegetables)
	diff(&ops, tmpl.DefaultSauces, it.Sauces)
	return ops
}

func diff(ops *IngredientsOps, defaults, chosen []string) {
	for _, v := range chosen {
		if !slices.Contains(defaults, v) {
			ops.Add = append(ops.Add, v)
		}
	}
	for _, v := range defaults {
		if !slices.Contains(chosen, v) {
			ops.Exclude = append(ops.Exclude, v)
		}
	}
}
