package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Accounts

func (s *PostgresStore) CreateAccount(ctx context.Context, account Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, display_name, email, phone, password_hash, is_email_verified, verification_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, account.ID, account.DisplayName, account.Email, account.Phone, account.PasswordHash, account.IsEmailVerified, account.VerificationToken)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccountByID(ctx context.Context, accountID string) (Account, error) {
	var account Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, phone, password_hash, is_email_verified
		FROM accounts
		WHERE id=$1
	`, accountID).Scan(&account.ID, &account.DisplayName, &account.Email, &account.Phone, &account.PasswordHash, &account.IsEmailVerified)
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (s *PostgresStore) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	var account Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, phone, password_hash, is_email_verified
		FROM accounts
		WHERE email=$1
	`, email).Scan(&account.ID, &account.DisplayName, &account.Email, &account.Phone, &account.PasswordHash, &account.IsEmailVerified)
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// FindAccountIDByPhone matches on exact phone string equality. Empty phones
// never match.
func (s *PostgresStore) FindAccountIDByPhone(ctx context.Context, phone string) (string, error) {
	if phone == "" {
		return "", sql.ErrNoRows
	}
	var accountID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM accounts WHERE phone=$1 ORDER BY created_at ASC LIMIT 1
	`, phone).Scan(&accountID)
	if err != nil {
		return "", err
	}
	return accountID, nil
}

func (s *PostgresStore) FindAccountIDByEmail(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", sql.ErrNoRows
	}
	var accountID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM accounts WHERE email=$1 ORDER BY created_at ASC LIMIT 1
	`, email).Scan(&accountID)
	if err != nil {
		return "", err
	}
	return accountID, nil
}

func (s *PostgresStore) UpdateVerificationToken(ctx context.Context, accountID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET verification_token=$2, verification_expires_at=$3, updated_at=NOW()
		WHERE id=$1
	`, accountID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyAccountEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET is_email_verified=TRUE, verification_token='', verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify account email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify account email rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Refresh sessions (Postgres fallback when Redis is not configured)

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, accountID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, account_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET account_id=EXCLUDED.account_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, accountID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (Account, error) {
	const query = `
		SELECT a.id, a.display_name, a.email, a.phone
		FROM refresh_sessions rs
		JOIN accounts a ON a.id = rs.account_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var account Account
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&account.ID, &account.DisplayName, &account.Email, &account.Phone)
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// Play sessions

func (s *PostgresStore) InsertPlaySession(ctx context.Context, session PlaySession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO play_sessions (id, host_id, title, venue, scheduled_at, max_players)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, session.ID, session.HostID, session.Title, session.Venue, session.ScheduledAt, session.MaxPlayers)
	if err != nil {
		return fmt.Errorf("insert play session: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPlaySession(ctx context.Context, sessionID string) (PlaySession, error) {
	var item PlaySession
	err := s.db.QueryRowContext(ctx, `
		SELECT id, host_id, title, venue, scheduled_at, max_players, created_at, updated_at
		FROM play_sessions
		WHERE id=$1
	`, sessionID).Scan(&item.ID, &item.HostID, &item.Title, &item.Venue, &item.ScheduledAt, &item.MaxPlayers, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return PlaySession{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListPlaySessions(ctx context.Context, accountID string) ([]PlaySession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ps.id, ps.host_id, ps.title, ps.venue, ps.scheduled_at, ps.max_players, ps.created_at, ps.updated_at
		FROM play_sessions ps
		LEFT JOIN session_participants sp ON sp.session_id = ps.id
		WHERE ps.host_id=$1 OR sp.account_id=$1
		ORDER BY ps.scheduled_at ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list play sessions: %w", err)
	}
	defer rows.Close()

	items := make([]PlaySession, 0)
	for rows.Next() {
		var item PlaySession
		if err := rows.Scan(&item.ID, &item.HostID, &item.Title, &item.Venue, &item.ScheduledAt, &item.MaxPlayers, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan play session: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate play sessions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) AddSessionParticipant(ctx context.Context, sessionID, accountID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_participants (session_id, account_id)
		VALUES ($1, $2)
		ON CONFLICT (session_id, account_id) DO NOTHING
	`, sessionID, accountID)
	if err != nil {
		return fmt.Errorf("add session participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSessionParticipants(ctx context.Context, sessionID string) ([]SessionParticipant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, account_id, joined_at
		FROM session_participants
		WHERE session_id=$1
		ORDER BY joined_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session participants: %w", err)
	}
	defer rows.Close()

	items := make([]SessionParticipant, 0)
	for rows.Next() {
		var item SessionParticipant
		if err := rows.Scan(&item.SessionID, &item.AccountID, &item.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan session participant: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session participants: %w", err)
	}
	return items, nil
}

// Invites

const inviteColumns = `
	id, COALESCE(session_id, ''), COALESCE(group_id, ''), inviter_id, invitee_name,
	invitee_phone, invitee_email, COALESCE(invitee_id, ''), status,
	notification_sent, sms_sent, responded_at, created_at, updated_at
`

func scanInvite(row interface{ Scan(...any) error }) (Invite, error) {
	var item Invite
	err := row.Scan(
		&item.ID,
		&item.SessionID,
		&item.GroupID,
		&item.InviterID,
		&item.InviteeName,
		&item.InviteePhone,
		&item.InviteeEmail,
		&item.InviteeID,
		&item.Status,
		&item.NotificationSent,
		&item.SMSSent,
		&item.RespondedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) InsertInvite(ctx context.Context, invite Invite) error {
	status := invite.Status
	if status == "" {
		status = InviteStatusPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_invites (id, session_id, group_id, inviter_id, invitee_name, invitee_phone, invitee_email, invitee_id, status, notification_sent, sms_sent)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11)
	`, invite.ID, invite.SessionID, invite.GroupID, invite.InviterID, invite.InviteeName, invite.InviteePhone, invite.InviteeEmail, invite.InviteeID, status, invite.NotificationSent, invite.SMSSent)
	if err != nil {
		return fmt.Errorf("insert invite: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetInvite(ctx context.Context, inviteID string) (Invite, error) {
	item, err := scanInvite(s.db.QueryRowContext(ctx, `
		SELECT `+inviteColumns+`
		FROM session_invites
		WHERE id=$1
	`, inviteID))
	if err != nil {
		return Invite{}, err
	}
	return item, nil
}

// RespondToInvite applies the invitee's response. The row is matched by id
// plus either the already-resolved invitee, or the caller's phone when the
// invite is still unbound; writing invitee_id here is the one-way
// external-to-internal promotion. Returns false when no row matched the
// caller.
func (s *PostgresStore) RespondToInvite(ctx context.Context, inviteID, accountID, phone, status string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE session_invites
		SET invitee_id=$2, status=$4, responded_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND (invitee_id=$2 OR (invitee_id IS NULL AND $3 <> '' AND invitee_phone=$3))
	`, inviteID, accountID, phone, status)
	if err != nil {
		return false, fmt.Errorf("respond to invite: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("respond to invite rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) MarkInviteDispatched(ctx context.Context, inviteID string, notificationSent, smsSent bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE session_invites
		SET notification_sent = notification_sent OR $2,
			sms_sent = sms_sent OR $3,
			updated_at=NOW()
		WHERE id=$1
	`, inviteID, notificationSent, smsSent)
	if err != nil {
		return fmt.Errorf("mark invite dispatched: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListInvitesBySession(ctx context.Context, sessionID string) ([]Invite, error) {
	return s.listInvites(ctx, `session_id=$1`, sessionID)
}

func (s *PostgresStore) ListInvitesByGroup(ctx context.Context, groupID string) ([]Invite, error) {
	return s.listInvites(ctx, `group_id=$1`, groupID)
}

func (s *PostgresStore) listInvites(ctx context.Context, where string, arg any) ([]Invite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+inviteColumns+`
		FROM session_invites
		WHERE `+where+`
		ORDER BY created_at ASC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	items := make([]Invite, 0)
	for rows.Next() {
		item, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invites: %w", err)
	}
	return items, nil
}

// ListFriends derives the friends relation from accepted, resolved invites
// authored by the given account. There is no friends table to drift from.
func (s *PostgresStore) ListFriends(ctx context.Context, inviterID string) ([]Friend, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT a.id, a.display_name, a.phone, a.email
		FROM session_invites i
		JOIN accounts a ON a.id = i.invitee_id
		WHERE i.inviter_id=$1 AND i.status='accepted' AND i.invitee_id IS NOT NULL
		ORDER BY a.display_name ASC
	`, inviterID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	items := make([]Friend, 0)
	for rows.Next() {
		var item Friend
		if err := rows.Scan(&item.AccountID, &item.DisplayName, &item.Phone, &item.Email); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friends: %w", err)
	}
	return items, nil
}

// BindInvitesToAccount re-binds unresolved invite rows to a freshly created
// account, matched by phone or email. Only rows with a NULL invitee_id are
// touched, so an earlier resolution is never overwritten.
func (s *PostgresStore) BindInvitesToAccount(ctx context.Context, accountID, phone, email string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE session_invites
		SET invitee_id=$1, updated_at=NOW()
		WHERE invitee_id IS NULL
			AND (($2 <> '' AND invitee_phone=$2) OR ($3 <> '' AND invitee_email=$3))
	`, accountID, phone, email)
	if err != nil {
		return 0, fmt.Errorf("bind invites to account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bind invites rows: %w", err)
	}
	return affected, nil
}

// Groups

func (s *PostgresStore) InsertGroup(ctx context.Context, group Group, creator GroupMember) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO groups (id, name, created_by)
		VALUES ($1, $2, $3)
	`, group.ID, group.Name, group.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}

	// The creator joins pre-accepted and pre-approved.
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO group_members (id, group_id, contact_name, contact_phone, contact_email, user_id, is_admin, accepted_invite, approval_status)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, TRUE, 'approved')
	`, creator.ID, group.ID, creator.ContactName, creator.ContactPhone, creator.ContactEmail, group.CreatedBy); err != nil {
		return fmt.Errorf("seed creator member: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGroup(ctx context.Context, groupID string) (Group, error) {
	var item Group
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_by, created_at, updated_at
		FROM groups
		WHERE id=$1
	`, groupID).Scan(&item.ID, &item.Name, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Group{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListGroupsForAccount(ctx context.Context, accountID string) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT g.id, g.name, g.created_by, g.created_at, g.updated_at
		FROM groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id=$1
		ORDER BY g.created_at DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	items := make([]Group, 0)
	for rows.Next() {
		var item Group
		if err := rows.Scan(&item.ID, &item.Name, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return items, nil
}

const groupMemberColumns = `
	id, group_id, contact_name, contact_phone, contact_email, COALESCE(user_id, ''),
	is_admin, accepted_invite, approval_status, created_at, updated_at
`

func scanGroupMember(row interface{ Scan(...any) error }) (GroupMember, error) {
	var item GroupMember
	err := row.Scan(
		&item.ID,
		&item.GroupID,
		&item.ContactName,
		&item.ContactPhone,
		&item.ContactEmail,
		&item.UserID,
		&item.IsAdmin,
		&item.AcceptedInvite,
		&item.ApprovalStatus,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) InsertGroupMember(ctx context.Context, member GroupMember) error {
	approval := member.ApprovalStatus
	if approval == "" {
		approval = ApprovalPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_members (id, group_id, contact_name, contact_phone, contact_email, user_id, is_admin, accepted_invite, approval_status)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
	`, member.ID, member.GroupID, member.ContactName, member.ContactPhone, member.ContactEmail, member.UserID, member.IsAdmin, member.AcceptedInvite, approval)
	if err != nil {
		return fmt.Errorf("insert group member: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGroupMember(ctx context.Context, groupID, memberID string) (GroupMember, error) {
	item, err := scanGroupMember(s.db.QueryRowContext(ctx, `
		SELECT `+groupMemberColumns+`
		FROM group_members
		WHERE group_id=$1 AND id=$2
	`, groupID, memberID))
	if err != nil {
		return GroupMember{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetGroupMemberByAccount(ctx context.Context, groupID, accountID string) (GroupMember, error) {
	item, err := scanGroupMember(s.db.QueryRowContext(ctx, `
		SELECT `+groupMemberColumns+`
		FROM group_members
		WHERE group_id=$1 AND user_id=$2
	`, groupID, accountID))
	if err != nil {
		return GroupMember{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListGroupMembers(ctx context.Context, groupID string) ([]GroupMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+groupMemberColumns+`
		FROM group_members
		WHERE group_id=$1
		ORDER BY created_at ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()

	items := make([]GroupMember, 0)
	for rows.Next() {
		item, err := scanGroupMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group members: %w", err)
	}
	return items, nil
}

// AcceptGroupInvite is the invitee's self-service half of the membership
// gate: accepted_invite flips, and the row is bound to the caller's account
// if it was still an unresolved contact. Admin approval is untouched.
func (s *PostgresStore) AcceptGroupInvite(ctx context.Context, groupID, accountID, phone, email string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE group_members
		SET accepted_invite=TRUE, user_id=COALESCE(user_id, $2), updated_at=NOW()
		WHERE group_id=$1
			AND (user_id=$2
				OR (user_id IS NULL AND $3 <> '' AND contact_phone=$3)
				OR (user_id IS NULL AND $4 <> '' AND contact_email=$4))
	`, groupID, accountID, phone, email)
	if err != nil {
		return false, fmt.Errorf("accept group invite: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("accept group invite rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SetMemberApproval(ctx context.Context, groupID, memberID, status string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE group_members
		SET approval_status=$3, updated_at=NOW()
		WHERE group_id=$1 AND id=$2
	`, groupID, memberID, status)
	if err != nil {
		return false, fmt.Errorf("set member approval: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set member approval rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SetMemberAdmin(ctx context.Context, groupID, memberID string, isAdmin bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE group_members
		SET is_admin=$3, updated_at=NOW()
		WHERE group_id=$1 AND id=$2
	`, groupID, memberID, isAdmin)
	if err != nil {
		return false, fmt.Errorf("set member admin: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set member admin rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) RemoveGroupMember(ctx context.Context, groupID, memberID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM group_members
		WHERE group_id=$1 AND id=$2
	`, groupID, memberID)
	if err != nil {
		return false, fmt.Errorf("remove group member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove group member rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) CountGroupAdmins(ctx context.Context, groupID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM group_members WHERE group_id=$1 AND is_admin=TRUE
	`, groupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count group admins: %w", err)
	}
	return count, nil
}
