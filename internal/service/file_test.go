package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/blob"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/schema"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// ============================================================================
// Mock Repository
// ============================================================================

type mockFileRepo struct {
	getFunc           func(ctx context.Context, id string) (xtable.Row, error)
	setContentFunc    func(ctx context.Context, c model.FileContent) error
	listPurgeableFunc func(ctx context.Context, cutoff time.Time, limit int) ([]model.FileContent, error)
	purgeFunc         func(ctx context.Context, id string, links []xtable.AssociationLink) error
}

func (m *mockFileRepo) Get(ctx context.Context, id string) (xtable.Row, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, database.ErrNotFound
}

func (m *mockFileRepo) SetContent(ctx context.Context, c model.FileContent) error {
	if m.setContentFunc != nil {
		return m.setContentFunc(ctx, c)
	}
	return nil
}

func (m *mockFileRepo) ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]model.FileContent, error) {
	if m.listPurgeableFunc != nil {
		return m.listPurgeableFunc(ctx, cutoff, limit)
	}
	return nil, nil
}

func (m *mockFileRepo) Purge(ctx context.Context, id string, links []xtable.AssociationLink) error {
	if m.purgeFunc != nil {
		return m.purgeFunc(ctx, id, links)
	}
	return nil
}

// presigningStore is a memory store that hands out URLs.
type presigningStore struct {
	*blob.Memory
	opts blob.SignedURLOptions
}

func (s *presigningStore) PresignURL(_ context.Context, key string, opts blob.SignedURLOptions) (string, error) {
	s.opts = opts
	return "https://files.example.test/" + key, nil
}

// ============================================================================
// Helpers
// ============================================================================

func newTestFileService(t *testing.T, files *mockFileRepo, store blob.Store, maxBytes int64) *FileService {
	t.Helper()
	svc, err := NewFileService(FileServiceConfig{
		Files:           files,
		Blobs:           store,
		Registry:        schema.New(),
		MaxContentBytes: maxBytes,
	})
	if err != nil {
		t.Fatalf("NewFileService: %v", err)
	}
	return svc
}

func fileManager() *xtable.Principal {
	return xtable.NewPrincipal("user:librarian", false, model.PermViewFiles, model.PermManageFiles)
}

func fileViewer() *xtable.Principal {
	return xtable.NewPrincipal("user:reader", false, model.PermViewFiles)
}

func storedFile(extra xtable.Row) func(context.Context, string) (xtable.Row, error) {
	return func(context.Context, string) (xtable.Row, error) {
		row := xtable.Row{"id": "file:score", "file_leaf_name": "score.pdf", "is_deleted": false}
		for k, v := range extra {
			row[k] = v
		}
		return row, nil
	}
}

// ============================================================================
// AttachContent
// ============================================================================

func TestAttachContent_StoresAndReplaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := blob.NewMemory()
	if _, err := store.Put(ctx, "files/score/old", strings.NewReader("old"), blob.PutOptions{}); err != nil {
		t.Fatalf("seed blob: %v", err)
	}

	var recorded model.FileContent
	files := &mockFileRepo{
		getFunc: storedFile(xtable.Row{"blob_key": "files/score/old"}),
		setContentFunc: func(_ context.Context, c model.FileContent) error {
			recorded = c
			return nil
		},
	}
	svc := newTestFileService(t, files, store, 1024)

	content, err := svc.AttachContent(ctx, fileManager(), "score", strings.NewReader("%PDF-1.7 hello"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recorded.FileID != "file:score" || recorded.SizeBytes != 14 {
		t.Errorf("unexpected recorded content: %+v", recorded)
	}
	if !strings.HasPrefix(content.BlobKey, "files/score/") {
		t.Errorf("unexpected blob key %q", content.BlobKey)
	}
	if content.MimeType != "application/pdf" {
		t.Errorf("expected sniffed pdf type, got %q", content.MimeType)
	}
	if _, err := store.Head(ctx, "files/score/old"); !errors.Is(err, blob.ErrNotFound) {
		t.Error("expected replaced blob to be removed")
	}
	if store.Len() != 1 {
		t.Errorf("expected exactly one blob, got %d", store.Len())
	}
}

func TestAttachContent_TooLarge(t *testing.T) {
	t.Parallel()
	store := blob.NewMemory()
	files := &mockFileRepo{getFunc: storedFile(nil)}
	svc := newTestFileService(t, files, store, 4)

	_, err := svc.AttachContent(context.Background(), fileManager(), "score", strings.NewReader("12345"), "text/plain")
	if !errors.Is(err, ErrContentTooLarge) {
		t.Errorf("expected ErrContentTooLarge, got %v", err)
	}
	if store.Len() != 0 {
		t.Error("nothing should be stored")
	}
}

func TestAttachContent_Empty(t *testing.T) {
	t.Parallel()
	files := &mockFileRepo{getFunc: storedFile(nil)}
	svc := newTestFileService(t, files, blob.NewMemory(), 0)

	_, err := svc.AttachContent(context.Background(), fileManager(), "score", bytes.NewReader(nil), "text/plain")
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("expected ErrNoContent, got %v", err)
	}
}

func TestAttachContent_RecordFailureRemovesBlob(t *testing.T) {
	t.Parallel()
	store := blob.NewMemory()
	files := &mockFileRepo{
		getFunc: storedFile(nil),
		setContentFunc: func(context.Context, model.FileContent) error {
			return database.ErrConnection
		},
	}
	svc := newTestFileService(t, files, store, 0)

	_, err := svc.AttachContent(context.Background(), fileManager(), "score", strings.NewReader("data"), "text/plain")
	if !errors.Is(err, database.ErrConnection) {
		t.Errorf("expected wrapped connection error, got %v", err)
	}
	if store.Len() != 0 {
		t.Error("orphaned blob should be removed")
	}
}

func TestAttachContent_ViewerNotAuthorized(t *testing.T) {
	t.Parallel()
	svc := newTestFileService(t, &mockFileRepo{getFunc: storedFile(nil)}, blob.NewMemory(), 0)

	_, err := svc.AttachContent(context.Background(), fileViewer(), "score", strings.NewReader("x"), "")
	if !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
}

// ============================================================================
// OpenContent
// ============================================================================

func TestOpenContent_StreamsWhenPresignUnsupported(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := blob.NewMemory()
	if _, err := store.Put(ctx, "files/score/v1", strings.NewReader("notes"), blob.PutOptions{ContentType: "text/plain"}); err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	files := &mockFileRepo{getFunc: storedFile(xtable.Row{"blob_key": "files/score/v1"})}
	svc := newTestFileService(t, files, store, 0)

	dl, err := svc.OpenContent(ctx, fileViewer(), "score")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dl.URL != "" || dl.Body == nil {
		t.Fatalf("expected a stream, got %+v", dl)
	}
	defer dl.Body.Close()
	body, _ := io.ReadAll(dl.Body)
	if string(body) != "notes" {
		t.Errorf("unexpected body %q", body)
	}
	if dl.MimeType != "text/plain" || dl.Name != "score.pdf" {
		t.Errorf("unexpected download metadata: %+v", dl)
	}
}

func TestOpenContent_PresignedURL(t *testing.T) {
	t.Parallel()
	store := &presigningStore{Memory: blob.NewMemory()}
	files := &mockFileRepo{getFunc: storedFile(xtable.Row{"blob_key": "files/score/v1", "mime_type": "application/pdf"})}
	svc := newTestFileService(t, files, store, 0)

	dl, err := svc.OpenContent(context.Background(), fileViewer(), "score")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dl.URL != "https://files.example.test/files/score/v1" {
		t.Errorf("unexpected url %q", dl.URL)
	}
	if store.opts.Filename != "score.pdf" {
		t.Errorf("expected attachment filename, got %q", store.opts.Filename)
	}
}

func TestOpenContent_NoContent(t *testing.T) {
	t.Parallel()
	svc := newTestFileService(t, &mockFileRepo{getFunc: storedFile(nil)}, blob.NewMemory(), 0)

	_, err := svc.OpenContent(context.Background(), fileViewer(), "score")
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("expected ErrNoContent, got %v", err)
	}
}

func TestOpenContent_DeletedFileNotFound(t *testing.T) {
	t.Parallel()
	files := &mockFileRepo{getFunc: storedFile(xtable.Row{"is_deleted": true, "blob_key": "files/score/v1"})}
	svc := newTestFileService(t, files, blob.NewMemory(), 0)

	_, err := svc.OpenContent(context.Background(), fileViewer(), "score")
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

// ============================================================================
// PurgeDeleted
// ============================================================================

func TestPurgeDeleted_RemovesBlobsAndRows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := blob.NewMemory()
	_, _ = store.Put(ctx, "files/a/1", strings.NewReader("a"), blob.PutOptions{})
	_, _ = store.Put(ctx, "files/b/1", strings.NewReader("b"), blob.PutOptions{})

	pending := []model.FileContent{
		{FileID: "file:a", BlobKey: "files/a/1"},
		{FileID: "file:b", BlobKey: "files/b/1"},
		{FileID: "file:c"},
	}
	var cutoffSeen time.Time
	var purgedIDs []string
	files := &mockFileRepo{
		listPurgeableFunc: func(_ context.Context, cutoff time.Time, limit int) ([]model.FileContent, error) {
			cutoffSeen = cutoff
			if len(pending) > limit {
				return pending[:limit], nil
			}
			return pending, nil
		},
		purgeFunc: func(_ context.Context, id string, links []xtable.AssociationLink) error {
			if len(links) == 0 {
				t.Error("expected association links for file rows")
			}
			purgedIDs = append(purgedIDs, id)
			pending = pending[1:]
			return nil
		},
	}
	svc := newTestFileService(t, files, store, 0)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	n, err := svc.PurgeDeleted(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 || len(purgedIDs) != 3 {
		t.Errorf("expected 3 purged, got %d (%v)", n, purgedIDs)
	}
	if store.Len() != 0 {
		t.Errorf("expected blobs removed, %d left", store.Len())
	}
	if !cutoffSeen.Equal(now.Add(-30 * 24 * time.Hour)) {
		t.Errorf("unexpected cutoff %v", cutoffSeen)
	}
}

func TestPurgeDeleted_SkipsFailingRows(t *testing.T) {
	t.Parallel()
	lists := 0
	files := &mockFileRepo{
		listPurgeableFunc: func(context.Context, time.Time, int) ([]model.FileContent, error) {
			lists++
			if lists > 5 {
				t.Fatal("purge loop did not terminate")
			}
			return []model.FileContent{{FileID: "file:stuck"}}, nil
		},
		purgeFunc: func(context.Context, string, []xtable.AssociationLink) error {
			return database.ErrQuery
		},
	}
	svc := newTestFileService(t, files, blob.NewMemory(), 0)

	n, err := svc.PurgeDeleted(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected nothing purged, got %d", n)
	}
}
