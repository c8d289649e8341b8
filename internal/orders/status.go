package orders

// transitions is the allowed-successor table for order statuses.
// FULFILLED and CANCELLED are terminal.
var transitions = map[string][]string{
	StatusNew:       {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusFulfilled, StatusCancelled},
	StatusFulfilled: {},
	StatusCancelled: {},
}

// ValidStatus reports whether s is a transition-table status.
func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether current -> target is an allowed transition.
func CanTransition(current, target string) bool {
	for _, next := range transitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// NextStatuses returns the allowed successors of current.
func NextStatuses(current string) []string {
	return transitions[current]
}
