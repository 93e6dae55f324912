package invites

import "fmt"

// FlowState is the dispatch state of one invitation flow. The flow moves
// strictly forward: idle -> staged -> dispatched -> reconciled.
type FlowState string

const (
	// FlowIdle is the zero state before a contact is selected.
	FlowIdle FlowState = "idle"
	// FlowStaged means the invite row is committed but no message has
	// been handed to a transport yet.
	FlowStaged FlowState = "staged"
	// FlowDispatched means the SMS or push handoff happened. Delivery is
	// unobservable, so this is the terminal state for external invites
	// until the invitee responds.
	FlowDispatched FlowState = "dispatched"
	// FlowReconciled means the invitee responded and the row is bound to
	// a real account.
	FlowReconciled FlowState = "reconciled"
)

// Flow tracks one invitation through its dispatch lifecycle.
type Flow struct {
	InviteID string
	state    FlowState
}

func NewFlow(inviteID string) *Flow {
	return &Flow{InviteID: inviteID, state: FlowIdle}
}

func (f *Flow) State() FlowState {
	return f.state
}

var transitions = map[FlowState]FlowState{
	FlowIdle:       FlowStaged,
	FlowStaged:     FlowDispatched,
	FlowDispatched: FlowReconciled,
}

// Advance moves the flow to the next state. Skipping or reversing states
// is rejected; retrying the current state is a no-op.
func (f *Flow) Advance(to FlowState) error {
	if to == f.state {
		return nil
	}
	if transitions[f.state] != to {
		return fmt.Errorf("invite %s: cannot move %s -> %s", f.InviteID, f.state, to)
	}
	f.state = to
	return nil
}
