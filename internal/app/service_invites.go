package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"rallypoint/api/internal/invites"
	"rallypoint/api/internal/store"
	"rallypoint/api/internal/util"
)

// TargetRef names the session or group an invite batch is for. Exactly one
// field is set.
type TargetRef struct {
	SessionID string
	GroupID   string
}

// InviteInput is one contact selected by the inviter. InviteeID is set when
// the contact was picked from the in-app friends list; otherwise the invite
// starts external.
type InviteInput struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	InviteeID string `json:"inviteeId"`
}

// InviteOutcome reports one invite's result within a batch.
type InviteOutcome struct {
	Input    InviteInput   `json:"input"`
	InviteID string        `json:"inviteId,omitempty"`
	State    string        `json:"state"`
	Internal bool          `json:"internal"`
	Error    string        `json:"error,omitempty"`
}

// InviteBatchResult is the aggregate outcome of CreateInvites. Invites are
// attempted independently; one failure never blocks the rest.
type InviteBatchResult struct {
	Created []InviteOutcome `json:"created"`
	Skipped []InviteOutcome `json:"skipped"`
	Failed  []InviteOutcome `json:"failed"`
}

var allowedInviteResponses = map[string]struct{}{
	store.InviteStatusAccepted: {},
	store.InviteStatusDeclined: {},
	store.InviteStatusMaybe:    {},
}

// CreateInvites stages and dispatches one invite per contact. Contacts whose
// phone number already belongs to a resolved friend of the inviter are
// skipped, preventing the same number from being invited through two UI
// paths in one sitting.
func (s *Service) CreateInvites(ctx context.Context, session Session, target TargetRef, inputs []InviteInput) (InviteBatchResult, error) {
	if (target.SessionID == "") == (target.GroupID == "") {
		return InviteBatchResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "exactly one of sessionId or groupId is required", nil)
	}

	var targetName string
	if target.SessionID != "" {
		playSession, err := s.store.GetPlaySession(ctx, target.SessionID)
		if err != nil {
			return InviteBatchResult{}, err
		}
		targetName = playSession.Title
	} else {
		group, err := s.store.GetGroup(ctx, target.GroupID)
		if err != nil {
			return InviteBatchResult{}, err
		}
		if err := s.requireCanManage(ctx, session.AccountID, target.GroupID); err != nil {
			return InviteBatchResult{}, err
		}
		targetName = group.Name
	}

	friendPhones, err := s.resolvedFriendPhones(ctx, session.AccountID)
	if err != nil {
		return InviteBatchResult{}, err
	}

	var result InviteBatchResult
	for _, input := range inputs {
		if input.Phone != "" && friendPhones[input.Phone] {
			result.Skipped = append(result.Skipped, InviteOutcome{Input: input, State: string(invites.FlowIdle)})
			continue
		}
		outcome := s.createOneInvite(ctx, session, target, targetName, input)
		if outcome.Error != "" {
			result.Failed = append(result.Failed, outcome)
			continue
		}
		result.Created = append(result.Created, outcome)
	}
	return result, nil
}

// resolvedFriendPhones collects the phone numbers of the inviter's accepted,
// internal invitees. Matching is exact string equality; numbers are not
// normalized.
func (s *Service) resolvedFriendPhones(ctx context.Context, inviterID string) (map[string]bool, error) {
	friends, err := s.store.ListFriends(ctx, inviterID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	phones := make(map[string]bool, len(friends))
	for _, friend := range friends {
		if friend.Phone != "" {
			phones[friend.Phone] = true
		}
	}
	return phones, nil
}

func (s *Service) createOneInvite(ctx context.Context, session Session, target TargetRef, targetName string, input InviteInput) InviteOutcome {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return InviteOutcome{Input: input, Error: "contact name is required"}
	}
	if input.Phone == "" && input.Email == "" && input.InviteeID == "" {
		return InviteOutcome{Input: input, Error: "contact needs a phone, email, or account"}
	}

	inviteeID := input.InviteeID
	if inviteeID == "" {
		resolved, err := s.resolver.Resolve(ctx, input.Phone, input.Email)
		if err != nil {
			return InviteOutcome{Input: input, Error: err.Error()}
		}
		inviteeID = resolved
	}

	flow := invites.NewFlow(util.NewID("inv"))
	invite := store.Invite{
		ID:           flow.InviteID,
		SessionID:    target.SessionID,
		GroupID:      target.GroupID,
		InviterID:    session.AccountID,
		InviteeName:  name,
		InviteePhone: input.Phone,
		InviteeEmail: input.Email,
		InviteeID:    inviteeID,
		Status:       store.InviteStatusPending,
	}
	if err := s.store.InsertInvite(ctx, invite); err != nil {
		return InviteOutcome{Input: input, Error: err.Error()}
	}
	_ = flow.Advance(invites.FlowStaged)

	// Group invites also seed a pending member row; both gates start unmet.
	if target.GroupID != "" {
		member := store.GroupMember{
			ID:             util.NewID("gm"),
			GroupID:        target.GroupID,
			ContactName:    name,
			ContactPhone:   input.Phone,
			ContactEmail:   input.Email,
			UserID:         inviteeID,
			ApprovalStatus: store.ApprovalPending,
		}
		if err := s.store.InsertGroupMember(ctx, member); err != nil {
			log.Printf("app: seed group member for invite %s: %v", invite.ID, err)
		}
	}

	s.dispatchInvite(ctx, session, invite, targetName, inviteeID != "")
	_ = flow.Advance(invites.FlowDispatched)

	return InviteOutcome{
		Input:    input,
		InviteID: invite.ID,
		State:    string(flow.State()),
		Internal: inviteeID != "",
	}
}

// dispatchInvite hands the invite to the right transport. Delivery is
// unobservable, so transport failures are logged and the invite stays
// committed.
func (s *Service) dispatchInvite(ctx context.Context, session Session, invite store.Invite, targetName string, internal bool) {
	if internal {
		body := fmt.Sprintf("%s invited you to %s", session.DisplayName, targetName)
		if err := s.push.SendPush(ctx, invite.InviteeID, "New invitation", body); err != nil {
			log.Printf("app: push invite %s: %v", invite.ID, err)
		}
		if err := s.store.MarkInviteDispatched(ctx, invite.ID, true, false); err != nil {
			log.Printf("app: mark invite %s dispatched: %v", invite.ID, err)
		}
		return
	}

	link, err := invites.Build(s.cfg.AppBaseURL, invites.DeepLink{
		SessionID: invite.SessionID,
		GroupID:   invite.GroupID,
		Phone:     invite.InviteePhone,
	})
	if err != nil {
		log.Printf("app: build deep link for invite %s: %v", invite.ID, err)
		return
	}

	smsSent := false
	if invite.InviteePhone != "" {
		body := fmt.Sprintf("%s invited you to %s on Rallypoint: %s", session.DisplayName, targetName, link)
		if err := s.sms.SendSMS(ctx, invite.InviteePhone, body); err != nil {
			log.Printf("app: sms invite %s: %v", invite.ID, err)
		} else {
			smsSent = true
		}
	} else if invite.InviteeEmail != "" && s.SMTPConfigured() {
		if err := s.emails.SendInviteEmail(invite.InviteeEmail, session.DisplayName, invite.InviteeName, targetName, link); err != nil {
			log.Printf("app: email invite %s: %v", invite.ID, err)
		}
	}

	if err := s.store.MarkInviteDispatched(ctx, invite.ID, false, smsSent); err != nil {
		log.Printf("app: mark invite %s dispatched: %v", invite.ID, err)
	}
}

// RespondToInvite records the invitee's response. The row is matched by
// account id or by the caller's phone number; the filtered update promotes
// external invites to internal exactly once. If the invite was accepted,
// session participation and group acceptance are best-effort enrichments
// that never roll back the response.
func (s *Service) RespondToInvite(ctx context.Context, session Session, inviteID, response string) (store.Invite, error) {
	if _, ok := allowedInviteResponses[response]; !ok {
		return store.Invite{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "response must be accepted, declined, or maybe", nil)
	}

	invite, err := s.store.GetInvite(ctx, inviteID)
	if err != nil {
		return store.Invite{}, err
	}

	matched, err := s.store.RespondToInvite(ctx, inviteID, session.AccountID, session.Phone, response)
	if err != nil {
		return store.Invite{}, err
	}
	if !matched {
		return store.Invite{}, domainError(http.StatusForbidden, "FORBIDDEN", "invite is not addressed to you", nil)
	}

	if response == store.InviteStatusAccepted {
		if invite.SessionID != "" {
			if err := s.store.AddSessionParticipant(ctx, invite.SessionID, session.AccountID); err != nil {
				log.Printf("app: add participant %s to session %s: %v", session.AccountID, invite.SessionID, err)
			}
		}
		if invite.GroupID != "" {
			if _, err := s.store.AcceptGroupInvite(ctx, invite.GroupID, session.AccountID, session.Phone, invite.InviteeEmail); err != nil {
				log.Printf("app: accept group invite %s for %s: %v", invite.GroupID, session.AccountID, err)
			}
		}
	}

	return s.store.GetInvite(ctx, inviteID)
}

// Friends derives the friends list from accepted invites authored by the
// caller. It is a live query, never a stored relation.
func (s *Service) Friends(ctx context.Context, session Session) ([]store.Friend, error) {
	return s.store.ListFriends(ctx, session.AccountID)
}

// FilterInvitableContacts drops device contacts whose phone already belongs
// to a resolved friend of the caller.
func (s *Service) FilterInvitableContacts(ctx context.Context, session Session, contacts []InviteInput) ([]InviteInput, error) {
	friendPhones, err := s.resolvedFriendPhones(ctx, session.AccountID)
	if err != nil {
		return nil, err
	}
	selectable := make([]InviteInput, 0, len(contacts))
	for _, contact := range contacts {
		if contact.Phone != "" && friendPhones[contact.Phone] {
			continue
		}
		selectable = append(selectable, contact)
	}
	return selectable, nil
}

// CreatePlaySession schedules a session with the caller as host and first
// participant.
func (s *Service) CreatePlaySession(ctx context.Context, session Session, title, venue string, scheduledAt time.Time, maxPlayers int) (store.PlaySession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.PlaySession{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if maxPlayers <= 0 {
		maxPlayers = 4
	}

	playSession := store.PlaySession{
		ID:          util.NewID("sess"),
		HostID:      session.AccountID,
		Title:       title,
		Venue:       strings.TrimSpace(venue),
		ScheduledAt: scheduledAt,
		MaxPlayers:  maxPlayers,
	}
	if err := s.store.InsertPlaySession(ctx, playSession); err != nil {
		return store.PlaySession{}, err
	}
	if err := s.store.AddSessionParticipant(ctx, playSession.ID, session.AccountID); err != nil {
		log.Printf("app: add host %s to session %s: %v", session.AccountID, playSession.ID, err)
	}
	return playSession, nil
}

func (s *Service) GetPlaySession(ctx context.Context, sessionID string) (store.PlaySession, []store.SessionParticipant, error) {
	playSession, err := s.store.GetPlaySession(ctx, sessionID)
	if err != nil {
		return store.PlaySession{}, nil, err
	}
	participants, err := s.store.ListSessionParticipants(ctx, sessionID)
	if err != nil {
		return store.PlaySession{}, nil, err
	}
	return playSession, participants, nil
}

func (s *Service) ListPlaySessions(ctx context.Context, session Session) ([]store.PlaySession, error) {
	return s.store.ListPlaySessions(ctx, session.AccountID)
}

func (s *Service) ListSessionInvites(ctx context.Context, session Session, sessionID string) ([]store.Invite, error) {
	playSession, err := s.store.GetPlaySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if playSession.HostID != session.AccountID {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "only the host can view session invites", nil)
	}
	return s.store.ListInvitesBySession(ctx, sessionID)
}
