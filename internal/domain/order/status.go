package order

// Status enumerates the order lifecycle states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusServed    Status = "served"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
	StatusMerged    Status = "merged"
)

// transitions holds the legal forward edges of the state machine. Cancelled
// and merged edges are handled by Cancel and Merge, which apply their own
// state checks; paid is reachable only through MarkPaid.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed},
	StatusConfirmed: {StatusPreparing},
	StatusPreparing: {StatusReady},
	StatusReady:     {StatusServed},
	StatusServed:    {},
}

// kitchenStatuses are the states Advance may target. Submit, Cancel, MarkPaid
// and Merge own the remaining transitions.
var kitchenStatuses = map[Status]bool{
	StatusPreparing: true,
	StatusReady:     true,
	StatusServed:    true,
}

// CanTransition reports whether moving from s to next follows the state graph.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusCancelled, StatusMerged:
		return true
	}
	return false
}

// Cancellable reports whether an order in state s may still be cancelled.
func (s Status) Cancellable() bool {
	switch s {
	case StatusServed, StatusPaid, StatusMerged:
		return false
	}
	return true
}
