package invites

import "testing"

func TestFlowAdvancesForward(t *testing.T) {
	flow := NewFlow("inv-1")
	for _, next := range []FlowState{FlowStaged, FlowDispatched, FlowReconciled} {
		if err := flow.Advance(next); err != nil {
			t.Fatalf("Advance(%s) error: %v", next, err)
		}
		if flow.State() != next {
			t.Fatalf("state = %s, want %s", flow.State(), next)
		}
	}
}

func TestFlowRejectsSkips(t *testing.T) {
	flow := NewFlow("inv-1")
	if err := flow.Advance(FlowDispatched); err == nil {
		t.Fatal("expected error skipping staged")
	}
	if err := flow.Advance(FlowReconciled); err == nil {
		t.Fatal("expected error skipping to reconciled")
	}
}

func TestFlowRejectsReversal(t *testing.T) {
	flow := NewFlow("inv-1")
	if err := flow.Advance(FlowStaged); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if err := flow.Advance(FlowDispatched); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if err := flow.Advance(FlowStaged); err == nil {
		t.Fatal("expected error moving backwards")
	}
}

func TestFlowRetrySameStateIsNoop(t *testing.T) {
	flow := NewFlow("inv-1")
	if err := flow.Advance(FlowStaged); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if err := flow.Advance(FlowStaged); err != nil {
		t.Fatalf("retrying current state should be a no-op, got %v", err)
	}
}
