package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"rallypoint/api/internal/membership"
	"rallypoint/api/internal/store"
	"rallypoint/api/internal/util"
)

// MemberView adds the derived activation flag to the stored member row.
type MemberView struct {
	store.GroupMember
	Active bool
}

// RemovalResult reports a member removal. Warning is set when the group is
// left with no admins; removal proceeds anyway.
type RemovalResult struct {
	Removed bool
	Warning string
}

func (s *Service) CreateGroup(ctx context.Context, session Session, name string) (store.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Group{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "group name is required", nil)
	}

	account, err := s.store.GetAccountByID(ctx, session.AccountID)
	if err != nil {
		return store.Group{}, err
	}

	group := store.Group{
		ID:        util.NewID("grp"),
		Name:      name,
		CreatedBy: session.AccountID,
	}
	// The creator enters with both gates already satisfied.
	creator := store.GroupMember{
		ID:             util.NewID("gm"),
		GroupID:        group.ID,
		ContactName:    account.DisplayName,
		ContactPhone:   account.Phone,
		ContactEmail:   account.Email,
		UserID:         account.ID,
		IsAdmin:        true,
		AcceptedInvite: true,
		ApprovalStatus: store.ApprovalApproved,
	}
	if err := s.store.InsertGroup(ctx, group, creator); err != nil {
		return store.Group{}, err
	}
	return group, nil
}

func (s *Service) GetGroup(ctx context.Context, groupID string) (store.Group, error) {
	return s.store.GetGroup(ctx, groupID)
}

func (s *Service) ListGroups(ctx context.Context, session Session) ([]store.Group, error) {
	return s.store.ListGroupsForAccount(ctx, session.AccountID)
}

func (s *Service) ListGroupInvites(ctx context.Context, session Session, groupID string) ([]store.Invite, error) {
	if err := s.requireCanManage(ctx, session.AccountID, groupID); err != nil {
		return nil, err
	}
	return s.store.ListInvitesByGroup(ctx, groupID)
}

// ListMembers returns every member row with the derived activation flag.
// Activation is computed per read, never stored.
func (s *Service) ListMembers(ctx context.Context, groupID string) ([]MemberView, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	members, err := s.store.ListGroupMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	views := make([]MemberView, 0, len(members))
	for _, member := range members {
		views = append(views, MemberView{
			GroupMember: member,
			Active:      membership.Active(member.AcceptedInvite, member.ApprovalStatus),
		})
	}
	return views, nil
}

// canManage reports whether the account may administer the group. The
// creator always can; otherwise the account's member row must carry the
// admin flag. Evaluated fresh on every call.
func (s *Service) canManage(ctx context.Context, accountID, groupID string) (bool, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return false, err
	}
	if group.CreatedBy == accountID {
		return true, nil
	}
	member, err := s.store.GetGroupMemberByAccount(ctx, groupID, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return membership.CanManage(false, member.IsAdmin), nil
}

func (s *Service) requireCanManage(ctx context.Context, accountID, groupID string) error {
	ok, err := s.canManage(ctx, accountID, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return domainError(http.StatusForbidden, "FORBIDDEN", "group admin access required", nil)
	}
	return nil
}

// SetMemberApproval moves a member's approval gate. Only managers may call
// it, and only approved or denied are reachable from here.
func (s *Service) SetMemberApproval(ctx context.Context, session Session, groupID, memberID, status string) (MemberView, error) {
	status = membership.NormalizeApproval(status)
	if status != store.ApprovalApproved && status != store.ApprovalDenied {
		return MemberView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be approved or denied", nil)
	}
	if err := s.requireCanManage(ctx, session.AccountID, groupID); err != nil {
		return MemberView{}, err
	}

	changed, err := s.store.SetMemberApproval(ctx, groupID, memberID, status)
	if err != nil {
		return MemberView{}, err
	}
	if !changed {
		return MemberView{}, domainError(http.StatusNotFound, "NOT_FOUND", "group member not found", nil)
	}
	return s.memberView(ctx, groupID, memberID)
}

func (s *Service) SetMemberAdmin(ctx context.Context, session Session, groupID, memberID string, isAdmin bool) (MemberView, error) {
	if err := s.requireCanManage(ctx, session.AccountID, groupID); err != nil {
		return MemberView{}, err
	}
	changed, err := s.store.SetMemberAdmin(ctx, groupID, memberID, isAdmin)
	if err != nil {
		return MemberView{}, err
	}
	if !changed {
		return MemberView{}, domainError(http.StatusNotFound, "NOT_FOUND", "group member not found", nil)
	}
	return s.memberView(ctx, groupID, memberID)
}

// RemoveMember removes a member row. Members may remove themselves; anyone
// else needs manage rights. Removing the last admin is allowed but flagged
// with a warning so the client can surface it.
func (s *Service) RemoveMember(ctx context.Context, session Session, groupID, memberID string) (RemovalResult, error) {
	member, err := s.store.GetGroupMember(ctx, groupID, memberID)
	if err != nil {
		return RemovalResult{}, err
	}

	if member.UserID != session.AccountID {
		if err := s.requireCanManage(ctx, session.AccountID, groupID); err != nil {
			return RemovalResult{}, err
		}
	}

	// The warning fires for any remover, not just an admin removing
	// themself. The group ends up adminless either way and the client
	// needs the flag in both cases.
	var warning string
	if member.IsAdmin {
		adminCount, err := s.store.CountGroupAdmins(ctx, groupID)
		if err != nil {
			return RemovalResult{}, err
		}
		if membership.LeavesGroupWithoutAdmin(member.IsAdmin, adminCount) {
			warning = "removing the last admin leaves the group without one"
		}
	}

	removed, err := s.store.RemoveGroupMember(ctx, groupID, memberID)
	if err != nil {
		return RemovalResult{}, err
	}
	if !removed {
		return RemovalResult{}, domainError(http.StatusNotFound, "NOT_FOUND", "group member not found", nil)
	}
	return RemovalResult{Removed: true, Warning: warning}, nil
}

// AcceptGroupInvite flips the caller's accepted_invite gate on their member
// row, matching by account id or exact phone/email.
func (s *Service) AcceptGroupInvite(ctx context.Context, session Session, groupID string) (MemberView, error) {
	account, err := s.store.GetAccountByID(ctx, session.AccountID)
	if err != nil {
		return MemberView{}, err
	}
	accepted, err := s.store.AcceptGroupInvite(ctx, groupID, account.ID, account.Phone, account.Email)
	if err != nil {
		return MemberView{}, err
	}
	if !accepted {
		return MemberView{}, domainError(http.StatusNotFound, "NOT_FOUND", "no pending invite for this group", nil)
	}
	member, err := s.store.GetGroupMemberByAccount(ctx, groupID, account.ID)
	if err != nil {
		return MemberView{}, err
	}
	return MemberView{
		GroupMember: member,
		Active:      membership.Active(member.AcceptedInvite, member.ApprovalStatus),
	}, nil
}

func (s *Service) memberView(ctx context.Context, groupID, memberID string) (MemberView, error) {
	member, err := s.store.GetGroupMember(ctx, groupID, memberID)
	if err != nil {
		return MemberView{}, err
	}
	return MemberView{
		GroupMember: member,
		Active:      membership.Active(member.AcceptedInvite, member.ApprovalStatus),
	}, nil
}
