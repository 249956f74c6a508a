package order

// Rejection records a command the guard refused before it reached the reducer.
type Rejection struct {
	Index   int     `json:"index"`
	Command Command `json:"command"`
	Reason  string  `json:"reason"`
}

// admit checks cmd against the batch rules for the state it would run on.
func admit(s *State, cmd Command) (string, bool) {
	switch {
	case cmd.Action.needsCurrentItem() && s.CurrentItem == nil:
		return msgNoCurrentItem, false

	case cmd.Action == ActionStartItem && s.CurrentItem != nil:
		// A start_item behind an add_to_cart in the same batch passes because
		// the add_to_cart has already cleared the current item by now.
		return msgItemInProgress, false

	case cmd.Action == ActionModifyCartItem && len(s.Cart) == 0:
		return msgCartEmpty, false

	case cmd.Action == ActionModifyCartItem && !s.inBounds(cmd.Target):
		return msgInvalidTarget, false
	}
	return "", true
}

// Guard splits cmds into those the reducer may see and those it must not,
// without touching s. Each command is judged against the state as it would be
// once every earlier admitted command in the batch had been applied.
func Guard(s *State, cmds []Command) ([]Command, []Rejection) {
	projected := s.Clone()
	var (
		accepted []Command
		rejected []Rejection
	)
	for i, cmd := range cmds {
		if reason, ok := admit(projected, cmd); !ok {
			rejected = append(rejected, Rejection{Index: i, Command: cmd, Reason: reason})
			continue
		}
		Apply(projected, cmd)
		accepted = append(accepted, cmd)
	}
	return accepted, rejected
}

// ApplyValidated runs the guard and the reducer in one pass over cmds.
// Results line up with the admitted commands, in order.
func ApplyValidated(s *State, cmds []Command) ([]Result, []Rejection) {
	results := make([]Result, 0, len(cmds))
	var rejected []Rejection
	for i, cmd := range cmds {
		if reason, ok := admit(s, cmd); !ok {
			rejected = append(rejected, Rejection{Index: i, Command: cmd, Reason: reason})
			continue
		}
		results = append(results, Apply(s, cmd))
	}
	return results, rejected
}
