// Package media manages the attachment lifecycle: files are staged in
// memory with a synthetic id and no owner, then committed to object storage
// and the durable store once their owning post or reply exists.
package media

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"rallypoint/api/internal/store"
	"rallypoint/api/internal/util"
)

// OwnerType identifies what kind of entity owns a committed attachment.
type OwnerType string

const (
	OwnerPost  OwnerType = "post"
	OwnerReply OwnerType = "reply"
)

// Owner is either unowned (the staged state) or bound to exactly one post
// or reply. The zero value is unowned.
type Owner struct {
	typ OwnerType
	id  string
}

func Unowned() Owner {
	return Owner{}
}

func OwnedByPost(postID string) Owner {
	return Owner{typ: OwnerPost, id: postID}
}

func OwnedByReply(replyID string) Owner {
	return Owner{typ: OwnerReply, id: replyID}
}

func (o Owner) Owned() bool {
	return o.id != ""
}

func (o Owner) Type() OwnerType {
	return o.typ
}

func (o Owner) ID() string {
	return o.id
}

// PendingAttachment exists only in memory. It never reaches the durable
// store until Commit binds it to a real owner.
type PendingAttachment struct {
	ID       string
	FileName string
	MimeType string
	Data     []byte
}

// ObjectStore is the object storage collaborator.
type ObjectStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
}

// AttachmentStore is the slice of the durable store the manager needs.
type AttachmentStore interface {
	PostExists(ctx context.Context, postID string) (bool, error)
	ReplyExists(ctx context.Context, replyID string) (bool, error)
	InsertAttachment(ctx context.Context, attachment store.Attachment) error
}

// Manager runs the stage/commit lifecycle.
type Manager struct {
	objects       ObjectStore
	store         AttachmentStore
	uploadTimeout time.Duration
	imageMaxDim   int
	imageQuality  int
}

func NewManager(objects ObjectStore, attachmentStore AttachmentStore, uploadTimeout time.Duration, imageMaxDim, imageQuality int) *Manager {
	return &Manager{
		objects:       objects,
		store:         attachmentStore,
		uploadTimeout: uploadTimeout,
		imageMaxDim:   imageMaxDim,
		imageQuality:  imageQuality,
	}
}

// Stage creates an in-memory attachment with a synthetic id and no owner.
func (m *Manager) Stage(fileName, mimeType string, data []byte) PendingAttachment {
	return PendingAttachment{
		ID:       util.NewPendingID(),
		FileName: fileName,
		MimeType: mimeType,
		Data:     data,
	}
}

// Commit uploads one staged attachment and inserts its durable row. The
// owner must already exist in the store; callers are required to create the
// post or reply first.
func (m *Manager) Commit(ctx context.Context, pending PendingAttachment, owner Owner) (store.Attachment, error) {
	if !util.IsPendingID(pending.ID) {
		return store.Attachment{}, fmt.Errorf("commit attachment %s: not a staged attachment", pending.ID)
	}
	if !owner.Owned() {
		return store.Attachment{}, fmt.Errorf("commit attachment %s: no owner", pending.ID)
	}

	exists, err := m.ownerExists(ctx, owner)
	if err != nil {
		return store.Attachment{}, fmt.Errorf("check owner %s %s: %w", owner.Type(), owner.ID(), err)
	}
	if !exists {
		return store.Attachment{}, fmt.Errorf("commit attachment %s: owner %s %s does not exist", pending.ID, owner.Type(), owner.ID())
	}

	data := pending.Data
	mimeType := pending.MimeType
	if strings.HasPrefix(mimeType, "image/") && m.imageMaxDim > 0 {
		// Re-encoding is best effort; the original bytes go up unchanged
		// when it fails.
		if shrunk, shrunkMime, err := downscaleImage(data, m.imageMaxDim, m.imageQuality); err == nil {
			data = shrunk
			mimeType = shrunkMime
		} else {
			log.Printf("media: downscale %s failed, uploading original: %v", pending.FileName, err)
		}
	}

	path := fmt.Sprintf("%ss/%s/%d_%s", owner.Type(), owner.ID(), time.Now().Unix(), sanitizeFileName(pending.FileName))

	uploadCtx, cancel := context.WithTimeout(ctx, m.uploadTimeout)
	defer cancel()
	url, err := m.objects.Put(uploadCtx, path, data, mimeType)
	if err != nil {
		return store.Attachment{}, fmt.Errorf("upload %s: %w", path, err)
	}

	attachment := store.Attachment{
		ID:       util.NewID("att"),
		FileName: pending.FileName,
		FilePath: path,
		FileSize: int64(len(data)),
		MimeType: mimeType,
		FileType: ClassifyMime(mimeType),
		URL:      url,
	}
	switch owner.Type() {
	case OwnerPost:
		attachment.PostID = owner.ID()
	case OwnerReply:
		attachment.ReplyID = owner.ID()
	}

	if err := m.store.InsertAttachment(ctx, attachment); err != nil {
		return store.Attachment{}, fmt.Errorf("persist attachment %s: %w", attachment.ID, err)
	}
	return attachment, nil
}

// Discard scrubs a staged attachment that will never be committed. Pendings
// live only in memory; zeroing the payload bytes is all there is to release,
// and it keeps a retained reference from uploading stale data later.
func (m *Manager) Discard(pending PendingAttachment) {
	for i := range pending.Data {
		pending.Data[i] = 0
	}
}

// CommitResult reports the outcome of one attachment within a batch.
type CommitResult struct {
	Pending    PendingAttachment
	Attachment store.Attachment
	Err        error
}

// CommitAll commits sibling attachments concurrently and joins them before
// returning. A failed upload is fatal only for that attachment; siblings
// that already committed stay committed.
func (m *Manager) CommitAll(ctx context.Context, pendings []PendingAttachment, owner Owner) []CommitResult {
	results := make([]CommitResult, len(pendings))

	var group errgroup.Group
	for i, pending := range pendings {
		group.Go(func() error {
			attachment, err := m.Commit(ctx, pending, owner)
			results[i] = CommitResult{Pending: pending, Attachment: attachment, Err: err}
			return nil
		})
	}
	_ = group.Wait()

	return results
}

func (m *Manager) ownerExists(ctx context.Context, owner Owner) (bool, error) {
	switch owner.Type() {
	case OwnerPost:
		return m.store.PostExists(ctx, owner.ID())
	case OwnerReply:
		return m.store.ReplyExists(ctx, owner.ID())
	default:
		return false, fmt.Errorf("unknown owner type %q", owner.Type())
	}
}

// ClassifyMime maps a MIME type to the stored file_type enum.
func ClassifyMime(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return store.FileTypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return store.FileTypeVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return store.FileTypeAudio
	default:
		return store.FileTypeDocument
	}
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "file"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "_", "?", "_", "#", "_")
	return replacer.Replace(name)
}
