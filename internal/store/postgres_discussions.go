package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Discussions

// EnsureDiscussion creates the lazy singleton for a (type, entity) pair. The
// unique constraint makes the insert a no-op when two callers race; both end
// up reading the same row.
func (s *PostgresStore) EnsureDiscussion(ctx context.Context, discussionID, discussionType, entityID string) (Discussion, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discussions (id, discussion_type, entity_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (discussion_type, entity_id) DO NOTHING
	`, discussionID, discussionType, entityID)
	if err != nil {
		return Discussion{}, fmt.Errorf("ensure discussion: %w", err)
	}

	var item Discussion
	err = s.db.QueryRowContext(ctx, `
		SELECT id, discussion_type, entity_id, created_at
		FROM discussions
		WHERE discussion_type=$1 AND entity_id=$2
	`, discussionType, entityID).Scan(&item.ID, &item.DiscussionType, &item.EntityID, &item.CreatedAt)
	if err != nil {
		return Discussion{}, fmt.Errorf("read discussion: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) GetDiscussion(ctx context.Context, discussionID string) (Discussion, error) {
	var item Discussion
	err := s.db.QueryRowContext(ctx, `
		SELECT id, discussion_type, entity_id, created_at
		FROM discussions
		WHERE id=$1
	`, discussionID).Scan(&item.ID, &item.DiscussionType, &item.EntityID, &item.CreatedAt)
	if err != nil {
		return Discussion{}, err
	}
	return item, nil
}

func (s *PostgresStore) AddDiscussionParticipant(ctx context.Context, discussionID, accountID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discussion_participants (discussion_id, account_id)
		VALUES ($1, $2)
		ON CONFLICT (discussion_id, account_id) DO NOTHING
	`, discussionID, accountID)
	if err != nil {
		return fmt.Errorf("add discussion participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDiscussionParticipants(ctx context.Context, discussionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id
		FROM discussion_participants
		WHERE discussion_id=$1
		ORDER BY joined_at ASC
	`, discussionID)
	if err != nil {
		return nil, fmt.Errorf("list discussion participants: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan discussion participant: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discussion participants: %w", err)
	}
	return ids, nil
}

// Posts

const postColumns = `
	id, discussion_id, author_id, title, content, post_type, is_pinned,
	is_archived, archived_at, view_count, reply_count, created_at, updated_at
`

func scanPost(row interface{ Scan(...any) error }) (Post, error) {
	var item Post
	err := row.Scan(
		&item.ID,
		&item.DiscussionID,
		&item.AuthorID,
		&item.Title,
		&item.Content,
		&item.PostType,
		&item.IsPinned,
		&item.IsArchived,
		&item.ArchivedAt,
		&item.ViewCount,
		&item.ReplyCount,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) InsertPost(ctx context.Context, post Post) error {
	postType := post.PostType
	if postType == "" {
		postType = PostTypeDiscussion
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, discussion_id, author_id, title, content, post_type, is_pinned)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, post.ID, post.DiscussionID, post.AuthorID, post.Title, post.Content, postType, post.IsPinned)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// GetPostAndCountView reads a post and bumps its view counter in the same
// statement. Every open counts; there is no per-viewer dedup.
func (s *PostgresStore) GetPostAndCountView(ctx context.Context, postID string) (Post, error) {
	item, err := scanPost(s.db.QueryRowContext(ctx, `
		UPDATE posts
		SET view_count = view_count + 1
		WHERE id=$1
		RETURNING `+postColumns+`
	`, postID))
	if err != nil {
		return Post{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetPost(ctx context.Context, postID string) (Post, error) {
	item, err := scanPost(s.db.QueryRowContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE id=$1
	`, postID))
	if err != nil {
		return Post{}, err
	}
	return item, nil
}

// Post sort orders accepted by ListPosts.
const (
	PostSortPinnedFirst = "pinned_first"
	PostSortNewest      = "newest"
	PostSortOldest      = "oldest"
	PostSortMostReplies = "most_replies"
	PostSortMostViews   = "most_views"
)

type PostFilter struct {
	SortBy          string
	PostType        string
	IncludeArchived bool
}

func postOrderClause(sortBy string) (string, error) {
	switch sortBy {
	case PostSortPinnedFirst, "":
		return "is_pinned DESC, created_at DESC", nil
	case PostSortNewest:
		return "created_at DESC", nil
	case PostSortOldest:
		return "created_at ASC", nil
	case PostSortMostReplies:
		return "reply_count DESC, created_at DESC", nil
	case PostSortMostViews:
		return "view_count DESC, created_at DESC", nil
	default:
		return "", errors.New("unknown post sort: " + sortBy)
	}
}

func (s *PostgresStore) ListPosts(ctx context.Context, discussionID string, filter PostFilter) ([]Post, error) {
	orderBy, err := postOrderClause(filter.SortBy)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE discussion_id=$1
		  AND ($2::boolean OR is_archived=FALSE)
		  AND ($3='' OR post_type=$3)
		ORDER BY `+orderBy+`
	`, discussionID, filter.IncludeArchived, filter.PostType)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	items := make([]Post, 0)
	for rows.Next() {
		item, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SetPostPinned(ctx context.Context, postID string, pinned bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE posts SET is_pinned=$2, updated_at=NOW() WHERE id=$1
	`, postID, pinned)
	if err != nil {
		return false, fmt.Errorf("set post pinned: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set post pinned rows: %w", err)
	}
	return affected > 0, nil
}

// ArchivePost flips the post and every reply under it in one statement, so
// a half-archived state is never observable. Returns false when the post was
// missing or already archived.
func (s *PostgresStore) ArchivePost(ctx context.Context, postID string) (bool, error) {
	var archivedID string
	err := s.db.QueryRowContext(ctx, `
		WITH archived_post AS (
			UPDATE posts
			SET is_archived=TRUE, archived_at=NOW(), updated_at=NOW()
			WHERE id=$1 AND is_archived=FALSE
			RETURNING id
		), archived_replies AS (
			UPDATE replies
			SET is_archived=TRUE, updated_at=NOW()
			WHERE post_id IN (SELECT id FROM archived_post)
		)
		SELECT id FROM archived_post
	`, postID).Scan(&archivedID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("archive post: %w", err)
	}
	return true, nil
}

// UnarchivePost reverses ArchivePost with the same single-statement cascade.
func (s *PostgresStore) UnarchivePost(ctx context.Context, postID string) (bool, error) {
	var restoredID string
	err := s.db.QueryRowContext(ctx, `
		WITH restored_post AS (
			UPDATE posts
			SET is_archived=FALSE, archived_at=NULL, updated_at=NOW()
			WHERE id=$1 AND is_archived=TRUE
			RETURNING id
		), restored_replies AS (
			UPDATE replies
			SET is_archived=FALSE, updated_at=NOW()
			WHERE post_id IN (SELECT id FROM restored_post)
		)
		SELECT id FROM restored_post
	`, postID).Scan(&restoredID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("unarchive post: %w", err)
	}
	return true, nil
}

// Replies

const replyColumns = `
	id, post_id, COALESCE(parent_reply_id, ''), author_id, content,
	is_edited, is_archived, created_at, updated_at
`

func scanReply(row interface{ Scan(...any) error }) (Reply, error) {
	var item Reply
	err := row.Scan(
		&item.ID,
		&item.PostID,
		&item.ParentReplyID,
		&item.AuthorID,
		&item.Content,
		&item.IsEdited,
		&item.IsArchived,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

// InsertReply creates the reply and bumps the post's denormalized
// reply_count in the same statement.
func (s *PostgresStore) InsertReply(ctx context.Context, reply Reply) error {
	result, err := s.db.ExecContext(ctx, `
		WITH created AS (
			INSERT INTO replies (id, post_id, parent_reply_id, author_id, content)
			SELECT $1, $2, NULLIF($3, ''), $4, $5
			WHERE EXISTS (SELECT 1 FROM posts WHERE id=$2)
			RETURNING post_id
		)
		UPDATE posts
		SET reply_count = reply_count + 1, updated_at=NOW()
		WHERE id IN (SELECT post_id FROM created)
	`, reply.ID, reply.PostID, reply.ParentReplyID, reply.AuthorID, reply.Content)
	if err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert reply rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) GetReply(ctx context.Context, replyID string) (Reply, error) {
	item, err := scanReply(s.db.QueryRowContext(ctx, `
		SELECT `+replyColumns+`
		FROM replies
		WHERE id=$1
	`, replyID))
	if err != nil {
		return Reply{}, err
	}
	return item, nil
}

// ListTopLevelReplies returns only the forest roots for a post; deeper
// levels are fetched per parent via ListChildReplies.
func (s *PostgresStore) ListTopLevelReplies(ctx context.Context, postID string, includeArchived bool) ([]Reply, error) {
	return s.listReplies(ctx, `
		SELECT `+replyColumns+`
		FROM replies
		WHERE post_id=$1 AND parent_reply_id IS NULL
		  AND ($2::boolean OR is_archived=FALSE)
		ORDER BY created_at ASC
	`, postID, includeArchived)
}

func (s *PostgresStore) ListChildReplies(ctx context.Context, parentReplyID string, includeArchived bool) ([]Reply, error) {
	return s.listReplies(ctx, `
		SELECT `+replyColumns+`
		FROM replies
		WHERE parent_reply_id=$1
		  AND ($2::boolean OR is_archived=FALSE)
		ORDER BY created_at ASC
	`, parentReplyID, includeArchived)
}

func (s *PostgresStore) listReplies(ctx context.Context, query string, args ...any) ([]Reply, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	defer rows.Close()

	items := make([]Reply, 0)
	for rows.Next() {
		item, err := scanReply(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replies: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateReplyContent(ctx context.Context, replyID, authorID, content string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE replies
		SET content=$3, is_edited=TRUE, updated_at=NOW()
		WHERE id=$1 AND author_id=$2
	`, replyID, authorID, content)
	if err != nil {
		return false, fmt.Errorf("update reply content: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update reply content rows: %w", err)
	}
	return affected > 0, nil
}

// Reactions

// AddPostReaction is idempotent at the (post, account, type) key: a repeat
// add neither errors nor creates a duplicate row.
func (s *PostgresStore) AddPostReaction(ctx context.Context, postID, accountID, reactionType string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_reactions (post_id, account_id, reaction_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, account_id, reaction_type) DO NOTHING
	`, postID, accountID, reactionType)
	if err != nil {
		return fmt.Errorf("add post reaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemovePostReaction(ctx context.Context, postID, accountID, reactionType string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM post_reactions
		WHERE post_id=$1 AND account_id=$2 AND reaction_type=$3
	`, postID, accountID, reactionType)
	if err != nil {
		return fmt.Errorf("remove post reaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddReplyReaction(ctx context.Context, replyID, accountID, reactionType string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reply_reactions (reply_id, account_id, reaction_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (reply_id, account_id, reaction_type) DO NOTHING
	`, replyID, accountID, reactionType)
	if err != nil {
		return fmt.Errorf("add reply reaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveReplyReaction(ctx context.Context, replyID, accountID, reactionType string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM reply_reactions
		WHERE reply_id=$1 AND account_id=$2 AND reaction_type=$3
	`, replyID, accountID, reactionType)
	if err != nil {
		return fmt.Errorf("remove reply reaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPostReactionCounts(ctx context.Context, postID string) ([]ReactionCount, error) {
	return s.listReactionCounts(ctx, `
		SELECT post_id, reaction_type, COUNT(*)::int
		FROM post_reactions
		WHERE post_id=$1
		GROUP BY post_id, reaction_type
		ORDER BY reaction_type ASC
	`, postID)
}

func (s *PostgresStore) ListReplyReactionCounts(ctx context.Context, replyID string) ([]ReactionCount, error) {
	return s.listReactionCounts(ctx, `
		SELECT reply_id, reaction_type, COUNT(*)::int
		FROM reply_reactions
		WHERE reply_id=$1
		GROUP BY reply_id, reaction_type
		ORDER BY reaction_type ASC
	`, replyID)
}

func (s *PostgresStore) listReactionCounts(ctx context.Context, query string, args ...any) ([]ReactionCount, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reaction counts: %w", err)
	}
	defer rows.Close()

	items := make([]ReactionCount, 0)
	for rows.Next() {
		var item ReactionCount
		if err := rows.Scan(&item.EntityID, &item.ReactionType, &item.Count); err != nil {
			return nil, fmt.Errorf("scan reaction count: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reaction counts: %w", err)
	}
	return items, nil
}

// Read tracking

func (s *PostgresStore) MarkPostRead(ctx context.Context, postID, accountID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_reads (post_id, account_id, last_read_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (post_id, account_id) DO UPDATE SET last_read_at=NOW()
	`, postID, accountID)
	if err != nil {
		return fmt.Errorf("mark post read: %w", err)
	}
	return nil
}

// UnreadPostCount counts live posts in a discussion the account has either
// never opened or that changed since the last open.
func (s *PostgresStore) UnreadPostCount(ctx context.Context, discussionID, accountID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM posts p
		LEFT JOIN post_reads pr ON pr.post_id = p.id AND pr.account_id=$2
		WHERE p.discussion_id=$1
		  AND p.is_archived=FALSE
		  AND (pr.post_id IS NULL OR p.updated_at > pr.last_read_at)
	`, discussionID, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread posts: %w", err)
	}
	return count, nil
}

// Attachments

func (s *PostgresStore) InsertAttachment(ctx context.Context, attachment Attachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (id, post_id, reply_id, file_name, file_path, file_size, mime_type, file_type, url)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9)
	`, attachment.ID, attachment.PostID, attachment.ReplyID, attachment.FileName, attachment.FilePath, attachment.FileSize, attachment.MimeType, attachment.FileType, attachment.URL)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPostAttachments(ctx context.Context, postID string) ([]Attachment, error) {
	return s.listAttachments(ctx, `post_id=$1`, postID)
}

func (s *PostgresStore) ListReplyAttachments(ctx context.Context, replyID string) ([]Attachment, error) {
	return s.listAttachments(ctx, `reply_id=$1`, replyID)
}

func (s *PostgresStore) listAttachments(ctx context.Context, where string, arg any) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(post_id, ''), COALESCE(reply_id, ''), file_name, file_path, file_size, mime_type, file_type, url, created_at
		FROM attachments
		WHERE `+where+`
		ORDER BY created_at ASC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	items := make([]Attachment, 0)
	for rows.Next() {
		var item Attachment
		if err := rows.Scan(&item.ID, &item.PostID, &item.ReplyID, &item.FileName, &item.FilePath, &item.FileSize, &item.MimeType, &item.FileType, &item.URL, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return items, nil
}

// PostExists and ReplyExists back the owner-before-attachment ordering
// check in the attachment commit path.
func (s *PostgresStore) PostExists(ctx context.Context, postID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id=$1)`, postID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check post exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ReplyExists(ctx context.Context, replyID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM replies WHERE id=$1)`, replyID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reply exists: %w", err)
	}
	return exists, nil
}
