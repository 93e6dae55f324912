// Package membership holds the pure rules for group membership gating.
package membership

import "rallypoint/api/internal/store"

// Active reports whether a member counts as a full group member. Both gates
// are independent authorities: the invitee flips acceptedInvite, an admin
// moves approvalStatus.
func Active(acceptedInvite bool, approvalStatus string) bool {
	return acceptedInvite && approvalStatus == store.ApprovalApproved
}

// CanManage is evaluated per call, never cached. Admin rights can change
// between two actions by the same caller.
func CanManage(isCreator, isAdmin bool) bool {
	return isCreator || isAdmin
}

// LeavesGroupWithoutAdmin reports whether removing the given member would
// strip the group of its last admin. Removal is not blocked in that case,
// only flagged so the caller can warn.
func LeavesGroupWithoutAdmin(memberIsAdmin bool, adminCount int) bool {
	return memberIsAdmin && adminCount <= 1
}

// NormalizeApproval maps unknown approval values to pending.
func NormalizeApproval(status string) string {
	switch status {
	case store.ApprovalPending, store.ApprovalApproved, store.ApprovalDenied:
		return status
	default:
		return store.ApprovalPending
	}
}
