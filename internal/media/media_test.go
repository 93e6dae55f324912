package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"rallypoint/api/internal/store"
)

type fakeObjects struct {
	mu      sync.Mutex
	puts    map[string][]byte
	failFor string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{puts: make(map[string][]byte)}
}

func (f *fakeObjects) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != "" && strings.Contains(path, f.failFor) {
		return "", errors.New("upload failed")
	}
	f.puts[path] = data
	return "https://files.test/" + path, nil
}

func (f *fakeObjects) Delete(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.puts, path)
	return nil
}

type fakeAttachmentStore struct {
	mu       sync.Mutex
	posts    map[string]bool
	replies  map[string]bool
	inserted []store.Attachment
}

func newFakeAttachmentStore() *fakeAttachmentStore {
	return &fakeAttachmentStore{
		posts:   make(map[string]bool),
		replies: make(map[string]bool),
	}
}

func (f *fakeAttachmentStore) PostExists(ctx context.Context, postID string) (bool, error) {
	return f.posts[postID], nil
}

func (f *fakeAttachmentStore) ReplyExists(ctx context.Context, replyID string) (bool, error) {
	return f.replies[replyID], nil
}

func (f *fakeAttachmentStore) InsertAttachment(ctx context.Context, attachment store.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, attachment)
	return nil
}

func newTestManager(objects ObjectStore, attachments AttachmentStore) *Manager {
	return NewManager(objects, attachments, 5*time.Second, 1600, 80)
}

func TestStageAssignsSyntheticIDAndNoOwner(t *testing.T) {
	m := newTestManager(newFakeObjects(), newFakeAttachmentStore())
	pending := m.Stage("court.jpg", "image/jpeg", []byte("not-really-a-jpeg"))
	if pending.ID == "" || !strings.HasPrefix(pending.ID, "pend") {
		t.Fatalf("expected synthetic pending id, got %q", pending.ID)
	}
	if Unowned().Owned() {
		t.Fatal("zero owner must be unowned")
	}
}

func TestCommitRequiresExistingOwner(t *testing.T) {
	objects := newFakeObjects()
	attachments := newFakeAttachmentStore()
	m := newTestManager(objects, attachments)

	pending := m.Stage("notes.pdf", "application/pdf", []byte("pdf-bytes"))
	_, err := m.Commit(context.Background(), pending, OwnedByPost("post-missing"))
	if err == nil {
		t.Fatal("expected commit before owner exists to fail")
	}
	if len(objects.puts) != 0 {
		t.Fatal("nothing should be uploaded when the owner is missing")
	}
	if len(attachments.inserted) != 0 {
		t.Fatal("nothing should be persisted when the owner is missing")
	}
}

func TestCommitRejectsUnowned(t *testing.T) {
	m := newTestManager(newFakeObjects(), newFakeAttachmentStore())
	pending := m.Stage("notes.pdf", "application/pdf", []byte("pdf-bytes"))
	if _, err := m.Commit(context.Background(), pending, Unowned()); err == nil {
		t.Fatal("expected commit without owner to fail")
	}
}

func TestCommitRejectsNonStagedAttachment(t *testing.T) {
	objects := newFakeObjects()
	attachments := newFakeAttachmentStore()
	attachments.posts["post-1"] = true
	m := newTestManager(objects, attachments)

	// A committed id fed back through Commit must be refused, not re-uploaded.
	pending := PendingAttachment{ID: "att_123", FileName: "notes.pdf", MimeType: "application/pdf", Data: []byte("pdf-bytes")}
	if _, err := m.Commit(context.Background(), pending, OwnedByPost("post-1")); err == nil {
		t.Fatal("expected commit of a non-staged attachment to fail")
	}
	if len(objects.puts) != 0 {
		t.Fatal("nothing should be uploaded for a non-staged attachment")
	}
}

func TestDiscardScrubsStagedPayload(t *testing.T) {
	m := newTestManager(newFakeObjects(), newFakeAttachmentStore())
	payload := []byte("pdf-bytes")
	pending := m.Stage("notes.pdf", "application/pdf", payload)

	m.Discard(pending)
	for _, b := range payload {
		if b != 0 {
			t.Fatal("discard must zero the staged payload")
		}
	}
}

func TestCommitUploadsUnderOwnerNamespace(t *testing.T) {
	objects := newFakeObjects()
	attachments := newFakeAttachmentStore()
	attachments.posts["post-1"] = true
	m := newTestManager(objects, attachments)

	pending := m.Stage("match notes.pdf", "application/pdf", []byte("pdf-bytes"))
	committed, err := m.Commit(context.Background(), pending, OwnedByPost("post-1"))
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if !strings.HasPrefix(committed.FilePath, "posts/post-1/") {
		t.Errorf("path %q not namespaced under posts/post-1/", committed.FilePath)
	}
	if !strings.HasSuffix(committed.FilePath, "_match_notes.pdf") {
		t.Errorf("path %q should end with sanitized file name", committed.FilePath)
	}
	if committed.PostID != "post-1" || committed.ReplyID != "" {
		t.Errorf("unexpected owner on committed attachment: %+v", committed)
	}
	if committed.FileType != store.FileTypeDocument {
		t.Errorf("expected document file type, got %q", committed.FileType)
	}
	if len(attachments.inserted) != 1 {
		t.Fatalf("expected one persisted attachment, got %d", len(attachments.inserted))
	}
}

func TestCommitAllIsolatesFailures(t *testing.T) {
	objects := newFakeObjects()
	objects.failFor = "bad"
	attachments := newFakeAttachmentStore()
	attachments.replies["reply-1"] = true
	m := newTestManager(objects, attachments)

	pendings := []PendingAttachment{
		m.Stage("good-one.pdf", "application/pdf", []byte("a")),
		m.Stage("bad.pdf", "application/pdf", []byte("b")),
		m.Stage("good-two.pdf", "application/pdf", []byte("c")),
	}

	results := m.CommitAll(context.Background(), pendings, OwnedByReply("reply-1"))
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	var failed, committed int
	for _, result := range results {
		if result.Err != nil {
			failed++
			continue
		}
		committed++
		if result.Attachment.ReplyID != "reply-1" {
			t.Errorf("committed attachment has wrong owner: %+v", result.Attachment)
		}
	}
	if failed != 1 || committed != 2 {
		t.Fatalf("expected 2 commits and 1 failure, got %d/%d", committed, failed)
	}
	if len(attachments.inserted) != 2 {
		t.Fatalf("siblings of a failed upload must stay committed, got %d rows", len(attachments.inserted))
	}
}

func TestCommitDownscalesOversizedImages(t *testing.T) {
	objects := newFakeObjects()
	attachments := newFakeAttachmentStore()
	attachments.posts["post-1"] = true
	m := NewManager(objects, attachments, 5*time.Second, 8, 80)

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 32, 16))); err != nil {
		t.Fatalf("encode test image: %v", err)
	}

	pending := m.Stage("wide.png", "image/png", buf.Bytes())
	committed, err := m.Commit(context.Background(), pending, OwnedByPost("post-1"))
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if committed.MimeType != "image/jpeg" {
		t.Errorf("expected re-encoded jpeg, got %q", committed.MimeType)
	}

	uploaded := objects.puts[committed.FilePath]
	cfg, _, err := image.DecodeConfig(bytes.NewReader(uploaded))
	if err != nil {
		t.Fatalf("decode uploaded image: %v", err)
	}
	if cfg.Width > 8 || cfg.Height > 8 {
		t.Errorf("uploaded image %dx%d exceeds max dimension 8", cfg.Width, cfg.Height)
	}
}

func TestCommitUploadsOriginalWhenReencodeFails(t *testing.T) {
	objects := newFakeObjects()
	attachments := newFakeAttachmentStore()
	attachments.posts["post-1"] = true
	m := newTestManager(objects, attachments)

	// Declared as an image but not decodable. The commit must still succeed
	// with the original bytes.
	raw := []byte("definitely not an image")
	pending := m.Stage("broken.png", "image/png", raw)
	committed, err := m.Commit(context.Background(), pending, OwnedByPost("post-1"))
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if !bytes.Equal(objects.puts[committed.FilePath], raw) {
		t.Error("original bytes should be uploaded when re-encoding fails")
	}
}

func TestClassifyMime(t *testing.T) {
	cases := map[string]string{
		"image/png":       store.FileTypeImage,
		"video/mp4":       store.FileTypeVideo,
		"audio/mpeg":      store.FileTypeAudio,
		"application/pdf": store.FileTypeDocument,
		"text/plain":      store.FileTypeDocument,
	}
	for mime, want := range cases {
		if got := ClassifyMime(mime); got != want {
			t.Errorf("ClassifyMime(%q) = %q, want %q", mime, got, want)
		}
	}
}
