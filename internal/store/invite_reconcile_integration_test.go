package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) (*PostgresStore, *sql.DB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := strings.TrimSpace(os.Getenv("RALLYPOINT_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("RALLYPOINT_TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db), db
}

func seedAccount(t *testing.T, s *PostgresStore, id, phone string) {
	t.Helper()
	err := s.CreateAccount(context.Background(), Account{
		ID:           id,
		DisplayName:  "Player " + id,
		Email:        id + "@example.com",
		Phone:        phone,
		PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("seed account %s: %v", id, err)
	}
}

func seedSession(t *testing.T, s *PostgresStore, id, hostID string) {
	t.Helper()
	err := s.InsertPlaySession(context.Background(), PlaySession{
		ID:          id,
		HostID:      hostID,
		Title:       "Test Session",
		ScheduledAt: time.Now().Add(24 * time.Hour),
		MaxPlayers:  4,
	})
	if err != nil {
		t.Fatalf("seed session %s: %v", id, err)
	}
}

func TestInviteePromotionIsOneWay(t *testing.T) {
	s, db := openTestStore(t)
	ctx := context.Background()

	seedAccount(t, s, "acct_host", "+1 555-0001")
	seedAccount(t, s, "acct_first", "+1 555-0002")
	seedAccount(t, s, "acct_second", "+1 555-0002")
	seedSession(t, s, "sess_1", "acct_host")

	invite := Invite{
		ID:           "inv_1",
		SessionID:    "sess_1",
		InviterID:    "acct_host",
		InviteeName:  "Sam",
		InviteePhone: "+1 555-0002",
		Status:       InviteStatusPending,
	}
	if err := s.InsertInvite(ctx, invite); err != nil {
		t.Fatalf("insert invite: %v", err)
	}

	bound, err := s.BindInvitesToAccount(ctx, "acct_first", "+1 555-0002", "")
	if err != nil {
		t.Fatalf("first bind: %v", err)
	}
	if bound != 1 {
		t.Fatalf("expected 1 bound invite, got %d", bound)
	}

	// A second account with the same number must not steal the binding.
	if _, err := s.BindInvitesToAccount(ctx, "acct_second", "+1 555-0002", ""); err != nil {
		t.Fatalf("second bind: %v", err)
	}

	var inviteeID string
	if err := db.QueryRowContext(ctx, `SELECT invitee_id FROM session_invites WHERE id='inv_1'`).Scan(&inviteeID); err != nil {
		t.Fatalf("read invitee_id: %v", err)
	}
	if inviteeID != "acct_first" {
		t.Fatalf("invitee_id must stay acct_first, got %q", inviteeID)
	}

	// The phone route is also closed once the invite is bound.
	matched, err := s.RespondToInvite(ctx, "inv_1", "acct_second", "+1 555-0002", InviteStatusAccepted)
	if err != nil {
		t.Fatalf("respond as second account: %v", err)
	}
	if matched {
		t.Fatal("a bound invite must not re-bind to another account by phone")
	}
}

func TestRespondToInviteMatchesByExactPhone(t *testing.T) {
	s, db := openTestStore(t)
	ctx := context.Background()

	seedAccount(t, s, "acct_host", "+1 555-0001")
	seedAccount(t, s, "acct_guest", "+1 555-0003")
	seedSession(t, s, "sess_1", "acct_host")

	if err := s.InsertInvite(ctx, Invite{
		ID:           "inv_1",
		SessionID:    "sess_1",
		InviterID:    "acct_host",
		InviteeName:  "Riley",
		InviteePhone: "+1 555-0003",
		Status:       InviteStatusPending,
	}); err != nil {
		t.Fatalf("insert invite: %v", err)
	}

	// A formatted variant of the number is a different string and must not
	// match.
	matched, err := s.RespondToInvite(ctx, "inv_1", "acct_guest", "+15550003", InviteStatusAccepted)
	if err != nil {
		t.Fatalf("respond with variant phone: %v", err)
	}
	if matched {
		t.Fatal("variant phone string must not match the invite")
	}

	matched, err = s.RespondToInvite(ctx, "inv_1", "acct_guest", "+1 555-0003", InviteStatusAccepted)
	if err != nil {
		t.Fatalf("respond with exact phone: %v", err)
	}
	if !matched {
		t.Fatal("exact phone string must match the invite")
	}

	// Responding again updates the same row rather than creating a new one.
	matched, err = s.RespondToInvite(ctx, "inv_1", "acct_guest", "+1 555-0003", InviteStatusDeclined)
	if err != nil {
		t.Fatalf("second response: %v", err)
	}
	if !matched {
		t.Fatal("second response must match the bound invite")
	}

	var rows int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_invites WHERE session_id='sess_1'`).Scan(&rows); err != nil {
		t.Fatalf("count invites: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single invite row, got %d", rows)
	}

	invite, err := s.GetInvite(ctx, "inv_1")
	if err != nil {
		t.Fatalf("get invite: %v", err)
	}
	if invite.Status != InviteStatusDeclined {
		t.Fatalf("expected declined, got %s", invite.Status)
	}
	if invite.InviteeID != "acct_guest" {
		t.Fatalf("expected promotion to acct_guest, got %q", invite.InviteeID)
	}
}

func TestArchivePostCascadesToReplies(t *testing.T) {
	s, db := openTestStore(t)
	ctx := context.Background()

	seedAccount(t, s, "acct_host", "+1 555-0001")
	seedSession(t, s, "sess_1", "acct_host")
	if _, err := s.EnsureDiscussion(ctx, "disc_1", DiscussionTypeSession, "sess_1"); err != nil {
		t.Fatalf("ensure discussion: %v", err)
	}
	if err := s.InsertPost(ctx, Post{
		ID: "post_1", DiscussionID: "disc_1", AuthorID: "acct_host",
		Title: "Courts", Content: "Which courts?", PostType: PostTypeDiscussion,
	}); err != nil {
		t.Fatalf("insert post: %v", err)
	}
	for i := 0; i < 3; i++ {
		reply := Reply{ID: fmt.Sprintf("rep_%d", i), PostID: "post_1", AuthorID: "acct_host", Content: "reply"}
		if err := s.InsertReply(ctx, reply); err != nil {
			t.Fatalf("insert reply %d: %v", i, err)
		}
	}

	post, err := s.GetPost(ctx, "post_1")
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if post.ReplyCount != 3 {
		t.Fatalf("expected reply_count 3, got %d", post.ReplyCount)
	}

	archived, err := s.ArchivePost(ctx, "post_1")
	if err != nil {
		t.Fatalf("archive post: %v", err)
	}
	if !archived {
		t.Fatal("expected archive to report a change")
	}

	var liveReplies int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM replies WHERE post_id='post_1' AND is_archived=FALSE`).Scan(&liveReplies); err != nil {
		t.Fatalf("count live replies: %v", err)
	}
	if liveReplies != 0 {
		t.Fatalf("expected all replies archived, %d still live", liveReplies)
	}

	// Archiving again is a no-op report, not an error.
	archived, err = s.ArchivePost(ctx, "post_1")
	if err != nil {
		t.Fatalf("second archive: %v", err)
	}
	if archived {
		t.Fatal("second archive must report no change")
	}

	// The archived post drops out of the default listing and comes back
	// flagged when archived rows are requested.
	posts, err := s.ListPosts(ctx, "disc_1", PostFilter{})
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("expected no live posts, got %d", len(posts))
	}
	posts, err = s.ListPosts(ctx, "disc_1", PostFilter{IncludeArchived: true})
	if err != nil {
		t.Fatalf("list posts with archived: %v", err)
	}
	if len(posts) != 1 || !posts[0].IsArchived {
		t.Fatalf("expected one archived post, got %+v", posts)
	}
	replies, err := s.ListTopLevelReplies(ctx, "post_1", true)
	if err != nil {
		t.Fatalf("list replies: %v", err)
	}
	if len(replies) != 3 {
		t.Fatalf("expected 3 replies, got %d", len(replies))
	}
	for _, reply := range replies {
		if !reply.IsArchived {
			t.Fatalf("reply %s should be archived", reply.ID)
		}
	}

	// Unarchiving restores the post and all of its replies together.
	restored, err := s.UnarchivePost(ctx, "post_1")
	if err != nil {
		t.Fatalf("unarchive post: %v", err)
	}
	if !restored {
		t.Fatal("expected unarchive to report a change")
	}
	post, err = s.GetPost(ctx, "post_1")
	if err != nil {
		t.Fatalf("get post after unarchive: %v", err)
	}
	if post.IsArchived {
		t.Fatal("post should be live again")
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM replies WHERE post_id='post_1' AND is_archived=FALSE`).Scan(&liveReplies); err != nil {
		t.Fatalf("count restored replies: %v", err)
	}
	if liveReplies != 3 {
		t.Fatalf("expected all 3 replies restored, got %d", liveReplies)
	}

	// Unarchiving a live post is the same no-op report.
	restored, err = s.UnarchivePost(ctx, "post_1")
	if err != nil {
		t.Fatalf("second unarchive: %v", err)
	}
	if restored {
		t.Fatal("second unarchive must report no change")
	}
}

func TestListPostsPinnedFirstOverStoredRows(t *testing.T) {
	s, db := openTestStore(t)
	ctx := context.Background()

	seedAccount(t, s, "acct_host", "+1 555-0001")
	seedSession(t, s, "sess_1", "acct_host")
	if _, err := s.EnsureDiscussion(ctx, "disc_1", DiscussionTypeSession, "sess_1"); err != nil {
		t.Fatalf("ensure discussion: %v", err)
	}
	for _, id := range []string{"post_old", "post_mid", "post_new"} {
		if err := s.InsertPost(ctx, Post{
			ID: id, DiscussionID: "disc_1", AuthorID: "acct_host",
			Title: id, Content: "body", PostType: PostTypeDiscussion,
		}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	// Spread created_at so the recency tiebreak is deterministic.
	for id, age := range map[string]string{"post_old": "2 minutes", "post_mid": "1 minute"} {
		if _, err := db.ExecContext(ctx, `UPDATE posts SET created_at = NOW() - $2::interval WHERE id=$1`, id, age); err != nil {
			t.Fatalf("backdate %s: %v", id, err)
		}
	}
	pinned, err := s.SetPostPinned(ctx, "post_old", true)
	if err != nil {
		t.Fatalf("pin post: %v", err)
	}
	if !pinned {
		t.Fatal("expected pin to report a change")
	}

	posts, err := s.ListPosts(ctx, "disc_1", PostFilter{})
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	got := make([]string, 0, len(posts))
	for _, p := range posts {
		got = append(got, p.ID)
	}
	want := []string{"post_old", "post_new", "post_mid"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("default sort: expected %v, got %v", want, got)
	}

	posts, err = s.ListPosts(ctx, "disc_1", PostFilter{SortBy: PostSortOldest})
	if err != nil {
		t.Fatalf("list posts oldest: %v", err)
	}
	got = got[:0]
	for _, p := range posts {
		got = append(got, p.ID)
	}
	want = []string{"post_old", "post_mid", "post_new"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("oldest sort: expected %v, got %v", want, got)
	}
}

func TestGetPostAndCountViewIncrementsPerOpen(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	seedAccount(t, s, "acct_host", "+1 555-0001")
	seedSession(t, s, "sess_1", "acct_host")
	if _, err := s.EnsureDiscussion(ctx, "disc_1", DiscussionTypeSession, "sess_1"); err != nil {
		t.Fatalf("ensure discussion: %v", err)
	}
	if err := s.InsertPost(ctx, Post{
		ID: "post_1", DiscussionID: "disc_1", AuthorID: "acct_host",
		Title: "Courts", Content: "Which courts?", PostType: PostTypeDiscussion,
	}); err != nil {
		t.Fatalf("insert post: %v", err)
	}

	for want := 1; want <= 3; want++ {
		post, err := s.GetPostAndCountView(ctx, "post_1")
		if err != nil {
			t.Fatalf("open %d: %v", want, err)
		}
		if post.ViewCount != want {
			t.Fatalf("open %d: expected view_count %d, got %d", want, want, post.ViewCount)
		}
	}
}
