package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rallypoint/api/internal/auth"
	"rallypoint/api/internal/authpw"
	"rallypoint/api/internal/search"
	"rallypoint/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleAuthSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleAuthSignIn(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/verify-email" {
		s.handleAuthVerifyEmail(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "displayName": nil})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "displayName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"accountId":     session.AccountID,
			"displayName":   session.DisplayName,
			"phone":         session.Phone,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "refreshToken is required", nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid refresh token", nil)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(session))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		_ = s.service.Logout(r.Context(), session, body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Everything below requires a session.
	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	switch parts[1] {
	case "sessions":
		s.handleSessions(w, r, session, parts)
	case "invites":
		s.handleInvites(w, r, session, parts)
	case "friends":
		if r.Method == http.MethodGet && len(parts) == 2 {
			friends, err := s.service.Friends(r.Context(), session)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"friends": friendPayloads(friends)})
			return
		}
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	case "contacts":
		s.handleContacts(w, r, session, parts)
	case "groups":
		s.handleGroups(w, r, session, parts)
	case "discussions":
		s.handleDiscussions(w, r, session, parts)
	case "posts":
		s.handlePosts(w, r, session, parts)
	case "replies":
		s.handleReplies(w, r, session, parts)
	case "search":
		s.handleSearch(w, r, session, parts)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case r.Method == http.MethodPost && len(parts) == 2:
		var body struct {
			Title       string    `json:"title"`
			Venue       string    `json:"venue"`
			ScheduledAt time.Time `json:"scheduledAt"`
			MaxPlayers  int       `json:"maxPlayers"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		playSession, err := s.service.CreatePlaySession(r.Context(), session, body.Title, body.Venue, body.ScheduledAt, body.MaxPlayers)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, playSessionPayload(playSession))

	case r.Method == http.MethodGet && len(parts) == 2:
		sessions, err := s.service.ListPlaySessions(r.Context(), session)
		if err != nil {
			writeMapped(w, err)
			return
		}
		payloads := make([]map[string]any, 0, len(sessions))
		for _, item := range sessions {
			payloads = append(payloads, playSessionPayload(item))
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": payloads})

	case r.Method == http.MethodGet && len(parts) == 3:
		playSession, participants, err := s.service.GetPlaySession(r.Context(), parts[2])
		if err != nil {
			writeMapped(w, err)
			return
		}
		payload := playSessionPayload(playSession)
		participantPayloads := make([]map[string]any, 0, len(participants))
		for _, participant := range participants {
			participantPayloads = append(participantPayloads, map[string]any{
				"accountId": participant.AccountID,
				"joinedAt":  participant.JoinedAt,
			})
		}
		payload["participants"] = participantPayloads
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodGet && len(parts) == 4 && parts[3] == "invites":
		invites, err := s.service.ListSessionInvites(r.Context(), session, parts[2])
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invites": invitePayloads(invites)})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleInvites(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case r.Method == http.MethodPost && len(parts) == 2:
		var body struct {
			SessionID string        `json:"sessionId"`
			GroupID   string        `json:"groupId"`
			Contacts  []InviteInput `json:"contacts"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.CreateInvites(r.Context(), session, TargetRef{SessionID: body.SessionID, GroupID: body.GroupID}, body.Contacts)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)

	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "respond":
		var body struct {
			Response string `json:"response"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		invite, err := s.service.RespondToInvite(r.Context(), session, parts[2], body.Response)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, invitePayload(invite))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleContacts(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if r.Method != http.MethodPost || len(parts) != 3 || parts[2] != "filter" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	var body struct {
		Contacts []InviteInput `json:"contacts"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	selectable, err := s.service.FilterInvitableContacts(r.Context(), session, body.Contacts)
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": selectable})
}

func (s *HTTPServer) handleGroups(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case r.Method == http.MethodPost && len(parts) == 2:
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		group, err := s.service.CreateGroup(r.Context(), session, body.Name)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, groupPayload(group))

	case r.Method == http.MethodGet && len(parts) == 2:
		groups, err := s.service.ListGroups(r.Context(), session)
		if err != nil {
			writeMapped(w, err)
			return
		}
		payloads := make([]map[string]any, 0, len(groups))
		for _, group := range groups {
			payloads = append(payloads, groupPayload(group))
		}
		writeJSON(w, http.StatusOK, map[string]any{"groups": payloads})

	case r.Method == http.MethodGet && len(parts) == 3:
		group, err := s.service.GetGroup(r.Context(), parts[2])
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, groupPayload(group))

	case r.Method == http.MethodGet && len(parts) == 4 && parts[3] == "members":
		members, err := s.service.ListMembers(r.Context(), parts[2])
		if err != nil {
			writeMapped(w, err)
			return
		}
		payloads := make([]map[string]any, 0, len(members))
		for _, member := range members {
			payloads = append(payloads, memberPayload(member))
		}
		writeJSON(w, http.StatusOK, map[string]any{"members": payloads})

	case r.Method == http.MethodGet && len(parts) == 4 && parts[3] == "invites":
		invites, err := s.service.ListGroupInvites(r.Context(), session, parts[2])
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invites": invitePayloads(invites)})

	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "accept-invite":
		member, err := s.service.AcceptGroupInvite(r.Context(), session, parts[2])
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, memberPayload(member))

	case r.Method == http.MethodPost && len(parts) == 6 && parts[3] == "members" && parts[5] == "approval":
		var body struct {
			Status string `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		member, err := s.service.SetMemberApproval(r.Context(), session, parts[2], parts[4], body.Status)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, memberPayload(member))

	case r.Method == http.MethodPost && len(parts) == 6 && parts[3] == "members" && parts[5] == "admin":
		var body struct {
			IsAdmin bool `json:"isAdmin"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		member, err := s.service.SetMemberAdmin(r.Context(), session, parts[2], parts[4], body.IsAdmin)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, memberPayload(member))

	case r.Method == http.MethodDelete && len(parts) == 5 && parts[3] == "members":
		result, err := s.service.RemoveMember(r.Context(), session, parts[2], parts[4])
		if err != nil {
			writeMapped(w, err)
			return
		}
		payload := map[string]any{"removed": result.Removed}
		if result.Warning != "" {
			payload["warning"] = result.Warning
		}
		writeJSON(w, http.StatusOK, payload)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleDiscussions(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "open":
		var body struct {
			Type     string `json:"type"`
			EntityID string `json:"entityId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		discussion, err := s.service.OpenDiscussion(r.Context(), session, body.Type, body.EntityID)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":        discussion.ID,
			"type":      discussion.DiscussionType,
			"entityId":  discussion.EntityID,
			"createdAt": discussion.CreatedAt,
		})

	case r.Method == http.MethodGet && len(parts) == 4 && parts[3] == "posts":
		query := r.URL.Query()
		filter := store.PostFilter{
			SortBy:          query.Get("sort"),
			PostType:        query.Get("postType"),
			IncludeArchived: query.Get("includeArchived") == "true",
		}
		posts, err := s.service.ListPosts(r.Context(), parts[2], filter)
		if err != nil {
			writeMapped(w, err)
			return
		}
		payloads := make([]map[string]any, 0, len(posts))
		for _, post := range posts {
			payloads = append(payloads, postPayload(post))
		}
		writeJSON(w, http.StatusOK, map[string]any{"posts": payloads})

	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "posts":
		var body struct {
			Title       string            `json:"title"`
			Content     string            `json:"content"`
			PostType    string            `json:"postType"`
			Attachments []AttachmentInput `json:"attachments"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.CreatePost(r.Context(), session, parts[2], body.Title, body.Content, body.PostType, body.Attachments)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, postViewPayload(view))

	case r.Method == http.MethodGet && len(parts) == 4 && parts[3] == "unread":
		count, err := s.service.UnreadCount(r.Context(), session, parts[2])
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"discussionId": parts[2], "unread": count})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handlePosts(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) < 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	postID := parts[2]

	switch {
	case r.Method == http.MethodGet && len(parts) == 3:
		view, err := s.service.GetPost(r.Context(), session, postID)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, postViewPayload(view))

	case r.Method == http.MethodPost && len(parts) == 4 && (parts[3] == "pin" || parts[3] == "unpin"):
		post, err := s.service.SetPostPinned(r.Context(), postID, parts[3] == "pin")
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, postPayload(post))

	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "archive":
		post, err := s.service.ArchivePost(r.Context(), postID)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, postPayload(post))

	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "unarchive":
		post, err := s.service.UnarchivePost(r.Context(), postID)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, postPayload(post))

	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "read":
		if err := s.service.MarkPostRead(r.Context(), session, postID); err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "replies":
		var body struct {
			ParentReplyID string            `json:"parentReplyId"`
			Content       string            `json:"content"`
			Attachments   []AttachmentInput `json:"attachments"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.CreateReply(r.Context(), session, postID, body.ParentReplyID, body.Content, body.Attachments)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, replyViewPayload(view))

	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "reactions":
		var body struct {
			ReactionType string `json:"reactionType"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		counts, err := s.service.ReactToPost(r.Context(), session, postID, body.ReactionType, true)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reactions": reactionPayloads(counts)})

	case r.Method == http.MethodDelete && len(parts) == 5 && parts[3] == "reactions":
		counts, err := s.service.ReactToPost(r.Context(), session, postID, parts[4], false)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reactions": reactionPayloads(counts)})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleReplies(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) < 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	replyID := parts[2]

	switch {
	case r.Method == http.MethodPut && len(parts) == 3:
		var body struct {
			Content string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		reply, err := s.service.EditReply(r.Context(), session, replyID, body.Content)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, replyPayload(reply))

	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "reactions":
		var body struct {
			ReactionType string `json:"reactionType"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		counts, err := s.service.ReactToReply(r.Context(), session, replyID, body.ReactionType, true)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reactions": reactionPayloads(counts)})

	case r.Method == http.MethodDelete && len(parts) == 5 && parts[3] == "reactions":
		counts, err := s.service.ReactToReply(r.Context(), session, replyID, parts[4], false)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reactions": reactionPayloads(counts)})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, _ Session, parts []string) {
	if r.Method != http.MethodGet || len(parts) != 2 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	response := s.service.SearchPosts(search.Query{
		Text:            query.Get("q"),
		DiscussionID:    query.Get("discussionId"),
		PostType:        query.Get("postType"),
		IncludeArchived: query.Get("includeArchived") == "true",
		Limit:           limit,
		Offset:          offset,
	})
	writeJSON(w, http.StatusOK, response)
}

// Auth handlers for email/password authentication

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Phone       string `json:"phone"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	resp, err := s.service.SignUp(r.Context(), authpw.SignUpRequest{
		Email:       body.Email,
		Phone:       body.Phone,
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		if err.Error() == "email already registered" {
			writeError(w, http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "SIGNUP_FAILED", err.Error(), nil)
		return
	}

	response := map[string]any{
		"accountId": resp.AccountID,
		"message":   "Please check your email to verify your account",
	}
	// Dev bypass: surface the token when no mailer is configured.
	if !s.service.SMTPConfigured() {
		response["devVerificationToken"] = resp.VerificationToken
		response["message"] = "Account created. Verify your email to continue."
	}

	writeJSON(w, http.StatusCreated, response)
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	resp, err := s.service.AuthPasswordService().SignIn(r.Context(), authpw.SignInRequest{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	}
	if resp.RequiresVerify {
		writeError(w, http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Please verify your email before signing in", nil)
		return
	}

	session, err := s.service.CreateSession(r.Context(), resp.Account.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SESSION_FAILED", "Failed to create session", nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleAuthVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.AuthPasswordService().VerifyEmail(r.Context(), body.Token); err != nil {
		writeError(w, http.StatusBadRequest, "VERIFICATION_FAILED", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Email verified successfully",
	})
}

// Payload builders

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"accessToken":  session.Token,
		"refreshToken": session.RefreshToken,
		"accountId":    session.AccountID,
		"displayName":  session.DisplayName,
		"phone":        session.Phone,
		"expiresAt":    session.ExpiresAt.Unix(),
	}
}

func playSessionPayload(item store.PlaySession) map[string]any {
	return map[string]any{
		"id":          item.ID,
		"hostId":      item.HostID,
		"title":       item.Title,
		"venue":       item.Venue,
		"scheduledAt": item.ScheduledAt,
		"maxPlayers":  item.MaxPlayers,
		"createdAt":   item.CreatedAt,
	}
}

func invitePayload(invite store.Invite) map[string]any {
	payload := map[string]any{
		"id":               invite.ID,
		"inviterId":        invite.InviterID,
		"inviteeName":      invite.InviteeName,
		"inviteePhone":     invite.InviteePhone,
		"inviteeEmail":     invite.InviteeEmail,
		"inviteeId":        invite.InviteeID,
		"status":           invite.Status,
		"notificationSent": invite.NotificationSent,
		"smsSent":          invite.SMSSent,
		"createdAt":        invite.CreatedAt,
	}
	if invite.SessionID != "" {
		payload["sessionId"] = invite.SessionID
	}
	if invite.GroupID != "" {
		payload["groupId"] = invite.GroupID
	}
	if invite.RespondedAt != nil {
		payload["respondedAt"] = invite.RespondedAt
	}
	return payload
}

func invitePayloads(invites []store.Invite) []map[string]any {
	payloads := make([]map[string]any, 0, len(invites))
	for _, invite := range invites {
		payloads = append(payloads, invitePayload(invite))
	}
	return payloads
}

func friendPayloads(friends []store.Friend) []map[string]any {
	payloads := make([]map[string]any, 0, len(friends))
	for _, friend := range friends {
		payloads = append(payloads, map[string]any{
			"accountId":   friend.AccountID,
			"displayName": friend.DisplayName,
			"phone":       friend.Phone,
			"email":       friend.Email,
		})
	}
	return payloads
}

func groupPayload(group store.Group) map[string]any {
	return map[string]any{
		"id":        group.ID,
		"name":      group.Name,
		"createdBy": group.CreatedBy,
		"createdAt": group.CreatedAt,
	}
}

func memberPayload(member MemberView) map[string]any {
	return map[string]any{
		"id":             member.ID,
		"groupId":        member.GroupID,
		"contactName":    member.ContactName,
		"contactPhone":   member.ContactPhone,
		"contactEmail":   member.ContactEmail,
		"userId":         member.UserID,
		"isAdmin":        member.IsAdmin,
		"acceptedInvite": member.AcceptedInvite,
		"approvalStatus": member.ApprovalStatus,
		"active":         member.Active,
	}
}

func postPayload(post store.Post) map[string]any {
	return map[string]any{
		"id":           post.ID,
		"discussionId": post.DiscussionID,
		"authorId":     post.AuthorID,
		"title":        post.Title,
		"content":      post.Content,
		"postType":     post.PostType,
		"isPinned":     post.IsPinned,
		"isArchived":   post.IsArchived,
		"viewCount":    post.ViewCount,
		"replyCount":   post.ReplyCount,
		"createdAt":    post.CreatedAt,
		"updatedAt":    post.UpdatedAt,
	}
}

func postViewPayload(view PostView) map[string]any {
	payload := postPayload(view.Post)
	payload["reactions"] = reactionPayloads(view.Reactions)
	payload["attachments"] = attachmentPayloads(view.Attachments)
	replies := make([]map[string]any, 0, len(view.Replies))
	for _, reply := range view.Replies {
		replies = append(replies, replyViewPayload(reply))
	}
	payload["replies"] = replies
	return payload
}

func replyPayload(reply store.Reply) map[string]any {
	payload := map[string]any{
		"id":         reply.ID,
		"postId":     reply.PostID,
		"authorId":   reply.AuthorID,
		"content":    reply.Content,
		"isEdited":   reply.IsEdited,
		"isArchived": reply.IsArchived,
		"createdAt":  reply.CreatedAt,
		"updatedAt":  reply.UpdatedAt,
	}
	if reply.ParentReplyID != "" {
		payload["parentReplyId"] = reply.ParentReplyID
	}
	return payload
}

func replyViewPayload(view ReplyView) map[string]any {
	payload := replyPayload(view.Reply)
	payload["reactions"] = reactionPayloads(view.Reactions)
	payload["attachments"] = attachmentPayloads(view.Attachments)
	children := make([]map[string]any, 0, len(view.Children))
	for _, child := range view.Children {
		children = append(children, replyViewPayload(child))
	}
	payload["children"] = children
	return payload
}

func reactionPayloads(counts []store.ReactionCount) []map[string]any {
	payloads := make([]map[string]any, 0, len(counts))
	for _, count := range counts {
		payloads = append(payloads, map[string]any{
			"reactionType": count.ReactionType,
			"count":        count.Count,
		})
	}
	return payloads
}

func attachmentPayloads(attachments []store.Attachment) []map[string]any {
	payloads := make([]map[string]any, 0, len(attachments))
	for _, attachment := range attachments {
		payloads = append(payloads, map[string]any{
			"id":       attachment.ID,
			"fileName": attachment.FileName,
			"fileSize": attachment.FileSize,
			"mimeType": attachment.MimeType,
			"fileType": attachment.FileType,
			"url":      attachment.URL,
		})
	}
	return payloads
}

// Session and middleware plumbing

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMapped(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
