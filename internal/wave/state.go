package wave

import "fmt"

// ItemState is the scheduler-side lifecycle state of one work item.
type ItemState string

const (
	ItemPending   ItemState = "PENDING"
	ItemRunning   ItemState = "RUNNING"
	ItemCompleted ItemState = "COMPLETED"
	ItemFailed    ItemState = "FAILED"
	ItemNotRun    ItemState = "NOT_RUN"
)

// State tracks item lifecycle by case name. Only the orchestrating
// goroutine mutates it; workers report through the results channel.
type State map[string]ItemState

// NewState initializes all named items to PENDING.
func NewState(names []string) State {
	s := make(State, len(names))
	for _, n := range names {
		s[n] = ItemPending
	}
	return s
}

// Transition performs a validated transition for a single item. The caller
// supplies the expected prior state so a double launch or a duplicate
// completion is observable instead of silent.
func (s State) Transition(name string, from, to ItemState) error {
	cur, ok := s[name]
	if !ok {
		return fmt.Errorf("unknown item: %q", name)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", name, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", name, from, to)
	}
	s[name] = to
	return nil
}

func isAllowedTransition(from, to ItemState) bool {
	switch from {
	case ItemPending:
		return to == ItemRunning || to == ItemNotRun
	case ItemRunning:
		return to == ItemCompleted || to == ItemFailed
	default:
		return false
	}
}
