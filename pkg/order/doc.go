// Package order implements the kiosk's order state machine.
//
// A session owns one State: an ordered cart, at most one item being composed,
// and a coarse lifecycle Status. Upstream collaborators (the LLM intent source,
// the rule-based parser, UI buttons) describe what they want as a list of
// Command values; this package validates and applies them.
//
// Two layers work together:
//
//   - Apply / ApplyAll: the reducer. Each command checks its own precondition
//     and either mutates the state or returns a rejection message. Nothing here
//     panics or returns an error; every outcome is a Result.
//   - Guard / ApplyValidated: the batch guard. It drops commands that are
//     structurally inconsistent with the state as it will be when the command
//     runs (editing with no active item, a second start_item, a cart edit that
//     points outside the cart) before they reach the reducer.
//
// Typical use from a turn handler:
//
//	cmds, err := order.ParseCommands(raw)
//	if err != nil {
//	    logger.Warn("some commands were malformed", "error", err)
//	}
//	results, rejected := order.ApplyValidated(state, cmds)
//
// Commands in a batch are applied strictly in order and each one sees the
// effect of the ones before it. A failing command never rolls back earlier
// successes.
package order
