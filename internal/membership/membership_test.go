package membership

import (
	"testing"

	"rallypoint/api/internal/store"
)

func TestActiveCoversAllGateCombinations(t *testing.T) {
	cases := []struct {
		name     string
		accepted bool
		approval string
		want     bool
	}{
		{"accepted and approved", true, store.ApprovalApproved, true},
		{"accepted but pending", true, store.ApprovalPending, false},
		{"accepted but denied", true, store.ApprovalDenied, false},
		{"not accepted, approved", false, store.ApprovalApproved, false},
		{"not accepted, pending", false, store.ApprovalPending, false},
		{"not accepted, denied", false, store.ApprovalDenied, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Active(tc.accepted, tc.approval); got != tc.want {
				t.Fatalf("Active(%v, %q) = %v, want %v", tc.accepted, tc.approval, got, tc.want)
			}
		})
	}
}

func TestCanManage(t *testing.T) {
	cases := []struct {
		name      string
		isCreator bool
		isAdmin   bool
		want      bool
	}{
		{"creator", true, false, true},
		{"admin", false, true, true},
		{"creator and admin", true, true, true},
		{"plain member", false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanManage(tc.isCreator, tc.isAdmin); got != tc.want {
				t.Fatalf("CanManage(%v, %v) = %v, want %v", tc.isCreator, tc.isAdmin, got, tc.want)
			}
		})
	}
}

func TestLeavesGroupWithoutAdmin(t *testing.T) {
	if !LeavesGroupWithoutAdmin(true, 1) {
		t.Error("removing the only admin should be flagged")
	}
	if LeavesGroupWithoutAdmin(true, 2) {
		t.Error("removing one of two admins should not be flagged")
	}
	if LeavesGroupWithoutAdmin(false, 1) {
		t.Error("removing a non-admin should not be flagged")
	}
}

func TestNormalizeApproval(t *testing.T) {
	if got := NormalizeApproval("bogus"); got != store.ApprovalPending {
		t.Fatalf("unknown status should normalize to pending, got %q", got)
	}
	if got := NormalizeApproval(store.ApprovalDenied); got != store.ApprovalDenied {
		t.Fatalf("known status should pass through, got %q", got)
	}
}
