package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"rallypoint/api/internal/media"
	"rallypoint/api/internal/search"
	"rallypoint/api/internal/store"
	"rallypoint/api/internal/util"
)

var allowedDiscussionTypes = map[string]struct{}{
	store.DiscussionTypeGroup:   {},
	store.DiscussionTypeSession: {},
}

var allowedPostTypes = map[string]struct{}{
	store.PostTypeDiscussion:   {},
	store.PostTypeAnnouncement: {},
}

var allowedReactionTypes = map[string]struct{}{
	"like":     {},
	"love":     {},
	"laugh":    {},
	"surprise": {},
	"sad":      {},
	"fire":     {},
}

// AttachmentInput is an attachment payload staged alongside a post or reply.
type AttachmentInput struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// ReplyView is a reply with its children, reactions, and attachments. The
// tree is two levels deep; deeper parents are flattened under the top-level
// reply by the store queries.
type ReplyView struct {
	store.Reply
	Children    []ReplyView           `json:"children"`
	Reactions   []store.ReactionCount `json:"reactions"`
	Attachments []store.Attachment    `json:"attachments"`
}

// PostView is the full read model for a single post.
type PostView struct {
	store.Post
	Reactions   []store.ReactionCount `json:"reactions"`
	Attachments []store.Attachment    `json:"attachments"`
	Replies     []ReplyView           `json:"replies"`
}

// OpenDiscussion returns the discussion for an entity, creating it on first
// open. The caller is recorded as a participant.
func (s *Service) OpenDiscussion(ctx context.Context, session Session, discussionType, entityID string) (store.Discussion, error) {
	if _, ok := allowedDiscussionTypes[discussionType]; !ok {
		return store.Discussion{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be group or session", nil)
	}

	switch discussionType {
	case store.DiscussionTypeGroup:
		if _, err := s.store.GetGroup(ctx, entityID); err != nil {
			return store.Discussion{}, err
		}
	case store.DiscussionTypeSession:
		if _, err := s.store.GetPlaySession(ctx, entityID); err != nil {
			return store.Discussion{}, err
		}
	}

	discussion, err := s.store.EnsureDiscussion(ctx, util.NewID("disc"), discussionType, entityID)
	if err != nil {
		return store.Discussion{}, err
	}
	if err := s.store.AddDiscussionParticipant(ctx, discussion.ID, session.AccountID); err != nil {
		log.Printf("app: add participant %s to discussion %s: %v", session.AccountID, discussion.ID, err)
	}
	return discussion, nil
}

func (s *Service) CreatePost(ctx context.Context, session Session, discussionID, title, content, postType string, attachments []AttachmentInput) (PostView, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if content == "" {
		return PostView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	if postType == "" {
		postType = store.PostTypeDiscussion
	}
	if _, ok := allowedPostTypes[postType]; !ok {
		return PostView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "postType must be discussion or announcement", nil)
	}
	if _, err := s.store.GetDiscussion(ctx, discussionID); err != nil {
		return PostView{}, err
	}

	post := store.Post{
		ID:           util.NewID("post"),
		DiscussionID: discussionID,
		AuthorID:     session.AccountID,
		Title:        title,
		Content:      content,
		PostType:     postType,
	}
	if err := s.store.InsertPost(ctx, post); err != nil {
		return PostView{}, err
	}
	if err := s.store.AddDiscussionParticipant(ctx, discussionID, session.AccountID); err != nil {
		log.Printf("app: add author %s to discussion %s: %v", session.AccountID, discussionID, err)
	}

	committed := s.commitAttachments(ctx, attachments, media.OwnedByPost(post.ID))
	s.indexPost(post)

	return PostView{Post: post, Attachments: committed, Reactions: []store.ReactionCount{}, Replies: []ReplyView{}}, nil
}

// GetPost returns the full read model and counts the open. Every call bumps
// view_count; marking the post read is best effort.
func (s *Service) GetPost(ctx context.Context, session Session, postID string) (PostView, error) {
	post, err := s.store.GetPostAndCountView(ctx, postID)
	if err != nil {
		return PostView{}, err
	}
	if err := s.store.MarkPostRead(ctx, postID, session.AccountID); err != nil {
		log.Printf("app: mark post %s read for %s: %v", postID, session.AccountID, err)
	}

	reactions, err := s.store.ListPostReactionCounts(ctx, postID)
	if err != nil {
		return PostView{}, err
	}
	attachments, err := s.store.ListPostAttachments(ctx, postID)
	if err != nil {
		return PostView{}, err
	}
	replies, err := s.replyTree(ctx, postID, post.IsArchived)
	if err != nil {
		return PostView{}, err
	}

	return PostView{Post: post, Reactions: reactions, Attachments: attachments, Replies: replies}, nil
}

// replyTree loads top-level replies and their children in two passes.
// Archived replies are only visible when the post itself is archived.
func (s *Service) replyTree(ctx context.Context, postID string, includeArchived bool) ([]ReplyView, error) {
	topLevel, err := s.store.ListTopLevelReplies(ctx, postID, includeArchived)
	if err != nil {
		return nil, err
	}
	views := make([]ReplyView, 0, len(topLevel))
	for _, reply := range topLevel {
		view, err := s.replyView(ctx, reply)
		if err != nil {
			return nil, err
		}
		children, err := s.store.ListChildReplies(ctx, reply.ID, includeArchived)
		if err != nil {
			return nil, err
		}
		view.Children = make([]ReplyView, 0, len(children))
		for _, child := range children {
			childView, err := s.replyView(ctx, child)
			if err != nil {
				return nil, err
			}
			view.Children = append(view.Children, childView)
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) replyView(ctx context.Context, reply store.Reply) (ReplyView, error) {
	reactions, err := s.store.ListReplyReactionCounts(ctx, reply.ID)
	if err != nil {
		return ReplyView{}, err
	}
	attachments, err := s.store.ListReplyAttachments(ctx, reply.ID)
	if err != nil {
		return ReplyView{}, err
	}
	return ReplyView{Reply: reply, Reactions: reactions, Attachments: attachments, Children: []ReplyView{}}, nil
}

func (s *Service) ListPosts(ctx context.Context, discussionID string, filter store.PostFilter) ([]store.Post, error) {
	if _, err := s.store.GetDiscussion(ctx, discussionID); err != nil {
		return nil, err
	}
	posts, err := s.store.ListPosts(ctx, discussionID, filter)
	if err != nil {
		if filter.SortBy != "" && strings.Contains(err.Error(), "unknown post sort") {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		}
		return nil, err
	}
	return posts, nil
}

func (s *Service) SetPostPinned(ctx context.Context, postID string, pinned bool) (store.Post, error) {
	changed, err := s.store.SetPostPinned(ctx, postID, pinned)
	if err != nil {
		return store.Post{}, err
	}
	if !changed {
		return store.Post{}, domainError(http.StatusNotFound, "NOT_FOUND", "post not found", nil)
	}
	return s.store.GetPost(ctx, postID)
}

// ArchivePost archives the post and all its replies atomically. Archiving
// an already archived post is a no-op that returns the current row.
func (s *Service) ArchivePost(ctx context.Context, postID string) (store.Post, error) {
	if _, err := s.store.ArchivePost(ctx, postID); err != nil {
		return store.Post{}, err
	}
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return store.Post{}, err
	}
	s.indexPost(post)
	return post, nil
}

func (s *Service) UnarchivePost(ctx context.Context, postID string) (store.Post, error) {
	if _, err := s.store.UnarchivePost(ctx, postID); err != nil {
		return store.Post{}, err
	}
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return store.Post{}, err
	}
	s.indexPost(post)
	return post, nil
}

func (s *Service) CreateReply(ctx context.Context, session Session, postID, parentReplyID, content string, attachments []AttachmentInput) (ReplyView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return ReplyView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}

	if parentReplyID != "" {
		parent, err := s.store.GetReply(ctx, parentReplyID)
		if err != nil {
			return ReplyView{}, err
		}
		if parent.PostID != postID {
			return ReplyView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "parent reply belongs to a different post", nil)
		}
	}

	reply := store.Reply{
		ID:            util.NewID("rep"),
		PostID:        postID,
		ParentReplyID: parentReplyID,
		AuthorID:      session.AccountID,
		Content:       content,
	}
	if err := s.store.InsertReply(ctx, reply); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ReplyView{}, domainError(http.StatusNotFound, "NOT_FOUND", "post not found", nil)
		}
		return ReplyView{}, err
	}

	committed := s.commitAttachments(ctx, attachments, media.OwnedByReply(reply.ID))
	s.notifyPostAuthor(ctx, session, postID)

	return ReplyView{Reply: reply, Attachments: committed, Reactions: []store.ReactionCount{}, Children: []ReplyView{}}, nil
}

func (s *Service) notifyPostAuthor(ctx context.Context, session Session, postID string) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		log.Printf("app: load post %s for reply notification: %v", postID, err)
		return
	}
	if post.AuthorID == session.AccountID {
		return
	}
	body := fmt.Sprintf("%s replied to %s", session.DisplayName, post.Title)
	if err := s.push.SendPush(ctx, post.AuthorID, "New reply", body); err != nil {
		log.Printf("app: push reply notification for post %s: %v", postID, err)
	}
}

// EditReply updates a reply's content. Only the author may edit; editing
// marks the reply as edited.
func (s *Service) EditReply(ctx context.Context, session Session, replyID, content string) (store.Reply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return store.Reply{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}

	changed, err := s.store.UpdateReplyContent(ctx, replyID, session.AccountID, content)
	if err != nil {
		return store.Reply{}, err
	}
	if !changed {
		exists, err := s.store.ReplyExists(ctx, replyID)
		if err != nil {
			return store.Reply{}, err
		}
		if !exists {
			return store.Reply{}, domainError(http.StatusNotFound, "NOT_FOUND", "reply not found", nil)
		}
		return store.Reply{}, domainError(http.StatusForbidden, "FORBIDDEN", "only the author can edit a reply", nil)
	}
	return s.store.GetReply(ctx, replyID)
}

// ReactToPost adds or removes a reaction. Both directions are idempotent at
// the (post, account, type) key.
func (s *Service) ReactToPost(ctx context.Context, session Session, postID, reactionType string, add bool) ([]store.ReactionCount, error) {
	if _, ok := allowedReactionTypes[reactionType]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown reaction type", nil)
	}
	exists, err := s.store.PostExists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "post not found", nil)
	}

	if add {
		err = s.store.AddPostReaction(ctx, postID, session.AccountID, reactionType)
	} else {
		err = s.store.RemovePostReaction(ctx, postID, session.AccountID, reactionType)
	}
	if err != nil {
		return nil, err
	}
	return s.store.ListPostReactionCounts(ctx, postID)
}

func (s *Service) ReactToReply(ctx context.Context, session Session, replyID, reactionType string, add bool) ([]store.ReactionCount, error) {
	if _, ok := allowedReactionTypes[reactionType]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown reaction type", nil)
	}
	exists, err := s.store.ReplyExists(ctx, replyID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "reply not found", nil)
	}

	if add {
		err = s.store.AddReplyReaction(ctx, replyID, session.AccountID, reactionType)
	} else {
		err = s.store.RemoveReplyReaction(ctx, replyID, session.AccountID, reactionType)
	}
	if err != nil {
		return nil, err
	}
	return s.store.ListReplyReactionCounts(ctx, replyID)
}

// MarkPostRead records that the caller has seen the post's current state.
func (s *Service) MarkPostRead(ctx context.Context, session Session, postID string) error {
	exists, err := s.store.PostExists(ctx, postID)
	if err != nil {
		return err
	}
	if !exists {
		return domainError(http.StatusNotFound, "NOT_FOUND", "post not found", nil)
	}
	return s.store.MarkPostRead(ctx, postID, session.AccountID)
}

// UnreadCount counts live posts the caller has never read, or read before
// the post's last update.
func (s *Service) UnreadCount(ctx context.Context, session Session, discussionID string) (int, error) {
	if _, err := s.store.GetDiscussion(ctx, discussionID); err != nil {
		return 0, err
	}
	return s.store.UnreadPostCount(ctx, discussionID, session.AccountID)
}

func (s *Service) SearchPosts(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// commitAttachments stages and commits the payloads for a freshly created
// owner. Per-attachment failures are logged; the post or reply stands.
func (s *Service) commitAttachments(ctx context.Context, inputs []AttachmentInput, owner media.Owner) []store.Attachment {
	if s.media == nil || len(inputs) == 0 {
		return []store.Attachment{}
	}
	pendings := make([]media.PendingAttachment, 0, len(inputs))
	for _, input := range inputs {
		pendings = append(pendings, s.media.Stage(input.FileName, input.MimeType, input.Data))
	}
	results := s.media.CommitAll(ctx, pendings, owner)
	committed := make([]store.Attachment, 0, len(results))
	for _, result := range results {
		if result.Err != nil {
			log.Printf("app: commit attachment %s: %v", result.Pending.FileName, result.Err)
			s.media.Discard(result.Pending)
			continue
		}
		committed = append(committed, result.Attachment)
	}
	return committed
}

func (s *Service) indexPost(post store.Post) {
	if s.search == nil {
		return
	}
	s.search.IndexPost(search.PostRecord{
		ID:           post.ID,
		DiscussionID: post.DiscussionID,
		Title:        post.Title,
		Content:      post.Content,
		PostType:     post.PostType,
		IsArchived:   post.IsArchived,
	})
}
