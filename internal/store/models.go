package store

import "time"

type Account struct {
	ID                    string
	DisplayName           string
	Email                 string
	Phone                 string
	PasswordHash          string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type PlaySession struct {
	ID          string
	HostID      string
	Title       string
	Venue       string
	ScheduledAt time.Time
	MaxPlayers  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type SessionParticipant struct {
	SessionID string
	AccountID string
	JoinedAt  time.Time
}

// Invite statuses. An invite row is never deleted, only transitioned.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"
	InviteStatusMaybe    = "maybe"
)

// Invite targets exactly one of SessionID/GroupID. InviteeID is empty while
// the invite is external; it is set at most once and never cleared.
type Invite struct {
	ID               string
	SessionID        string
	GroupID          string
	InviterID        string
	InviteeName      string
	InviteePhone     string
	InviteeEmail     string
	InviteeID        string
	Status           string
	NotificationSent bool
	SMSSent          bool
	RespondedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Friend is a derived row, not a stored relation: any account that accepted
// an invite authored by the current user.
type Friend struct {
	AccountID   string
	DisplayName string
	Phone       string
	Email       string
}

type Group struct {
	ID        string
	Name      string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalDenied   = "denied"
)

type GroupMember struct {
	ID             string
	GroupID        string
	ContactName    string
	ContactPhone   string
	ContactEmail   string
	UserID         string
	IsAdmin        bool
	AcceptedInvite bool
	ApprovalStatus string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const (
	DiscussionTypeGroup   = "group"
	DiscussionTypeSession = "session"
)

type Discussion struct {
	ID             string
	DiscussionType string
	EntityID       string
	CreatedAt      time.Time
}

const (
	PostTypeDiscussion   = "discussion"
	PostTypeAnnouncement = "announcement"
)

type Post struct {
	ID           string
	DiscussionID string
	AuthorID     string
	Title        string
	Content      string
	PostType     string
	IsPinned     bool
	IsArchived   bool
	ArchivedAt   *time.Time
	ViewCount    int
	ReplyCount   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Reply rows form a forest rooted at each post. ParentReplyID is empty for
// top-level replies.
type Reply struct {
	ID            string
	PostID        string
	ParentReplyID string
	AuthorID      string
	Content       string
	IsEdited      bool
	IsArchived    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ReactionCount struct {
	EntityID     string
	ReactionType string
	Count        int
}

const (
	FileTypeImage    = "image"
	FileTypeDocument = "document"
	FileTypeVideo    = "video"
	FileTypeAudio    = "audio"
)

// Attachment is the durable, committed form. Exactly one of PostID/ReplyID
// is set; staged attachments never reach this table.
type Attachment struct {
	ID        string
	PostID    string
	ReplyID   string
	FileName  string
	FilePath  string
	FileSize  int64
	MimeType  string
	FileType  string
	URL       string
	CreatedAt time.Time
}
