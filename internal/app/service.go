package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"rallypoint/api/internal/auth"
	"rallypoint/api/internal/authpw"
	"rallypoint/api/internal/config"
	"rallypoint/api/internal/email"
	"rallypoint/api/internal/identity"
	"rallypoint/api/internal/media"
	"rallypoint/api/internal/notify"
	"rallypoint/api/internal/search"
	"rallypoint/api/internal/store"
	"rallypoint/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	AccountID    string
	DisplayName  string
	Phone        string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	Ping(ctx context.Context) error

	CreateAccount(ctx context.Context, account store.Account) error
	GetAccountByID(ctx context.Context, accountID string) (store.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (store.Account, error)
	FindAccountIDByPhone(ctx context.Context, phone string) (string, error)
	FindAccountIDByEmail(ctx context.Context, email string) (string, error)
	UpdateVerificationToken(ctx context.Context, accountID, token string, expiresAt time.Time) error
	VerifyAccountEmail(ctx context.Context, token string) error

	SaveRefreshSession(ctx context.Context, tokenHash, accountID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.Account, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	InsertPlaySession(ctx context.Context, session store.PlaySession) error
	GetPlaySession(ctx context.Context, sessionID string) (store.PlaySession, error)
	ListPlaySessions(ctx context.Context, accountID string) ([]store.PlaySession, error)
	AddSessionParticipant(ctx context.Context, sessionID, accountID string) error
	ListSessionParticipants(ctx context.Context, sessionID string) ([]store.SessionParticipant, error)

	InsertInvite(ctx context.Context, invite store.Invite) error
	GetInvite(ctx context.Context, inviteID string) (store.Invite, error)
	RespondToInvite(ctx context.Context, inviteID, accountID, phone, status string) (bool, error)
	MarkInviteDispatched(ctx context.Context, inviteID string, notificationSent, smsSent bool) error
	ListInvitesBySession(ctx context.Context, sessionID string) ([]store.Invite, error)
	ListInvitesByGroup(ctx context.Context, groupID string) ([]store.Invite, error)
	ListFriends(ctx context.Context, inviterID string) ([]store.Friend, error)
	BindInvitesToAccount(ctx context.Context, accountID, phone, email string) (int64, error)

	InsertGroup(ctx context.Context, group store.Group, creator store.GroupMember) error
	GetGroup(ctx context.Context, groupID string) (store.Group, error)
	ListGroupsForAccount(ctx context.Context, accountID string) ([]store.Group, error)
	InsertGroupMember(ctx context.Context, member store.GroupMember) error
	GetGroupMember(ctx context.Context, groupID, memberID string) (store.GroupMember, error)
	GetGroupMemberByAccount(ctx context.Context, groupID, accountID string) (store.GroupMember, error)
	ListGroupMembers(ctx context.Context, groupID string) ([]store.GroupMember, error)
	AcceptGroupInvite(ctx context.Context, groupID, accountID, phone, email string) (bool, error)
	SetMemberApproval(ctx context.Context, groupID, memberID, status string) (bool, error)
	SetMemberAdmin(ctx context.Context, groupID, memberID string, isAdmin bool) (bool, error)
	RemoveGroupMember(ctx context.Context, groupID, memberID string) (bool, error)
	CountGroupAdmins(ctx context.Context, groupID string) (int, error)

	EnsureDiscussion(ctx context.Context, discussionID, discussionType, entityID string) (store.Discussion, error)
	GetDiscussion(ctx context.Context, discussionID string) (store.Discussion, error)
	AddDiscussionParticipant(ctx context.Context, discussionID, accountID string) error
	ListDiscussionParticipants(ctx context.Context, discussionID string) ([]string, error)

	InsertPost(ctx context.Context, post store.Post) error
	GetPost(ctx context.Context, postID string) (store.Post, error)
	GetPostAndCountView(ctx context.Context, postID string) (store.Post, error)
	ListPosts(ctx context.Context, discussionID string, filter store.PostFilter) ([]store.Post, error)
	SetPostPinned(ctx context.Context, postID string, pinned bool) (bool, error)
	ArchivePost(ctx context.Context, postID string) (bool, error)
	UnarchivePost(ctx context.Context, postID string) (bool, error)

	InsertReply(ctx context.Context, reply store.Reply) error
	GetReply(ctx context.Context, replyID string) (store.Reply, error)
	ListTopLevelReplies(ctx context.Context, postID string, includeArchived bool) ([]store.Reply, error)
	ListChildReplies(ctx context.Context, parentReplyID string, includeArchived bool) ([]store.Reply, error)
	UpdateReplyContent(ctx context.Context, replyID, authorID, content string) (bool, error)

	AddPostReaction(ctx context.Context, postID, accountID, reactionType string) error
	RemovePostReaction(ctx context.Context, postID, accountID, reactionType string) error
	AddReplyReaction(ctx context.Context, replyID, accountID, reactionType string) error
	RemoveReplyReaction(ctx context.Context, replyID, accountID, reactionType string) error
	ListPostReactionCounts(ctx context.Context, postID string) ([]store.ReactionCount, error)
	ListReplyReactionCounts(ctx context.Context, replyID string) ([]store.ReactionCount, error)

	PostExists(ctx context.Context, postID string) (bool, error)
	ReplyExists(ctx context.Context, replyID string) (bool, error)

	MarkPostRead(ctx context.Context, postID, accountID string) error
	UnreadPostCount(ctx context.Context, discussionID, accountID string) (int, error)

	ListPostAttachments(ctx context.Context, postID string) ([]store.Attachment, error)
	ListReplyAttachments(ctx context.Context, replyID string) ([]store.Attachment, error)
}

// refreshStore is the optional Redis-backed replacement for the Postgres
// refresh session tables.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, accountID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.Account, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexPost(p search.PostRecord)
}

type mediaManager interface {
	Stage(fileName, mimeType string, data []byte) media.PendingAttachment
	CommitAll(ctx context.Context, pendings []media.PendingAttachment, owner media.Owner) []media.CommitResult
	Discard(pending media.PendingAttachment)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	refresh  refreshStore
	authpw   *authpw.Service
	emails   *email.Service
	sms      notify.SMSSender
	push     notify.PushSender
	search   searchService
	media    mediaManager
	resolver *identity.Resolver
}

// Deps bundles the collaborators the service wires together.
type Deps struct {
	Refresh refreshStore
	Emails  *email.Service
	SMS     notify.SMSSender
	Push    notify.PushSender
	Search  searchService
	Media   mediaManager
}

func New(cfg config.Config, dataStore *store.PostgresStore, deps Deps) *Service {
	sms := deps.SMS
	if sms == nil {
		sms = notify.LogSMS{}
	}
	push := deps.Push
	if push == nil {
		push = notify.LogPush{}
	}
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		refresh:  deps.Refresh,
		authpw:   authpw.NewService(dataStore),
		emails:   deps.Emails,
		sms:      sms,
		push:     push,
		search:   deps.Search,
		media:    deps.Media,
		resolver: identity.NewResolver(dataStore),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// AuthPasswordService exposes the email/password auth service to handlers.
func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.emails != nil && s.emails.IsConfigured()
}

// SignUp creates the account and, best effort, sends the verification email
// and re-binds any invites already addressed to the new account's phone or
// email.
func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (*authpw.SignUpResponse, error) {
	resp, err := s.authpw.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.SMTPConfigured() {
		verifyURL := fmt.Sprintf("%s/verify?token=%s", s.cfg.AppBaseURL, resp.VerificationToken)
		if err := s.emails.SendVerificationEmail(req.Email, req.DisplayName, verifyURL); err != nil {
			log.Printf("app: send verification email to %s: %v", req.Email, err)
		}
	}

	s.bindInvites(ctx, resp.AccountID, req.Phone, req.Email)
	return resp, nil
}

// bindInvites attaches unresolved invites matching the contact details to
// the account. Failures are logged, never surfaced; the binding also happens
// lazily when the invitee responds.
func (s *Service) bindInvites(ctx context.Context, accountID, phone, emailAddr string) {
	bound, err := s.store.BindInvitesToAccount(ctx, accountID, phone, emailAddr)
	if err != nil {
		log.Printf("app: bind invites for %s: %v", accountID, err)
		return
	}
	if bound > 0 {
		log.Printf("app: bound %d invites to account %s", bound, accountID)
	}
}

// CreateSession issues tokens for an already authenticated account.
func (s *Service) CreateSession(ctx context.Context, accountID string) (Session, error) {
	account, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return Session{}, err
	}
	s.bindInvites(ctx, account.ID, account.Phone, account.Email)
	return s.issueSession(ctx, account)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	account, err := s.lookupRefresh(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.revokeRefresh(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	if account.DisplayName == "" {
		account, err = s.store.GetAccountByID(ctx, account.ID)
		if err != nil {
			return Session{}, err
		}
	}
	return s.issueSession(ctx, account)
}

func (s *Service) issueSession(ctx context.Context, account store.Account) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   account.ID,
		Name:  account.DisplayName,
		Phone: account.Phone,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.saveRefresh(ctx, auth.HashToken(refresh), account.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		AccountID:    account.ID,
		DisplayName:  account.DisplayName,
		Phone:        account.Phone,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	account, err := s.store.GetAccountByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:       token,
		AccountID:   account.ID,
		DisplayName: account.DisplayName,
		Phone:       account.Phone,
		JTI:         claims.JTI,
		ExpiresAt:   time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.revokeRefresh(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) saveRefresh(ctx context.Context, tokenHash, accountID string, expiresAt time.Time) error {
	if s.refresh != nil {
		return s.refresh.SaveRefreshSession(ctx, tokenHash, accountID, expiresAt)
	}
	return s.store.SaveRefreshSession(ctx, tokenHash, accountID, expiresAt)
}

func (s *Service) lookupRefresh(ctx context.Context, tokenHash string) (store.Account, error) {
	if s.refresh != nil {
		return s.refresh.LookupRefreshSession(ctx, tokenHash)
	}
	return s.store.LookupRefreshSession(ctx, tokenHash)
}

func (s *Service) revokeRefresh(ctx context.Context, tokenHash string) error {
	if s.refresh != nil {
		return s.refresh.RevokeRefreshSession(ctx, tokenHash)
	}
	return s.store.RevokeRefreshSession(ctx, tokenHash)
}
