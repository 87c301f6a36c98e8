package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/blob"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/metrics"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// FileRepository defines the interface for file content bookkeeping
type FileRepository interface {
	Get(ctx context.Context, id string) (xtable.Row, error)
	SetContent(ctx context.Context, c model.FileContent) error
	ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]model.FileContent, error)
	Purge(ctx context.Context, id string, links []xtable.AssociationLink) error
}

const (
	DefaultMaxContentBytes int64 = 64 << 20
	purgeBatchSize               = 100
	fileNameMember               = "file_leaf_name"
)

// FileService stores and serves the content attached to file rows.
type FileService struct {
	files    FileRepository
	blobs    blob.Store
	registry *xtable.Registry
	table    *xtable.Table
	maxBytes int64
	expiry   time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

// FileServiceConfig holds configuration for the file service
type FileServiceConfig struct {
	Files           FileRepository
	Blobs           blob.Store
	Registry        *xtable.Registry
	Table           string // defaults to "file"
	MaxContentBytes int64
	PresignExpiry   time.Duration
	Metrics         *metrics.Metrics // optional
}

// NewFileService creates a new file service
func NewFileService(cfg FileServiceConfig) (*FileService, error) {
	name := cfg.Table
	if name == "" {
		name = "file"
	}
	t, ok := cfg.Registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("file table %q is not registered", name)
	}
	maxBytes := cfg.MaxContentBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxContentBytes
	}
	return &FileService{
		files:    cfg.Files,
		blobs:    cfg.Blobs,
		registry: cfg.Registry,
		table:    t,
		maxBytes: maxBytes,
		expiry:   cfg.PresignExpiry,
		metrics:  cfg.Metrics,
		now:      time.Now,
	}, nil
}

// MaxContentBytes is the largest content AttachContent accepts.
func (s *FileService) MaxContentBytes() int64 {
	return s.maxBytes
}

// AttachContent stores r as the content of a file row, replacing any previous
// content. An empty or generic mimeType is sniffed from the data.
func (s *FileService) AttachContent(ctx context.Context, p *xtable.Principal, fileID string, r io.Reader, mimeType string) (*model.FileContent, error) {
	if !s.table.CanEdit(p) {
		return nil, ErrNotAuthorized
	}
	row, err := s.load(ctx, p, fileID)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrContentTooLarge
	}
	if len(data) == 0 {
		return nil, ErrNoContent
	}
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	recordID := xtable.RecordIDString(row["id"])
	_, bare, _ := strings.Cut(recordID, ":")
	key := path.Join("files", bare, uuid.NewString())

	info, err := s.blobs.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: mimeType,
		Metadata:    map[string]string{"file_id": recordID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store content: %w", err)
	}

	content := model.FileContent{
		FileID:    recordID,
		BlobKey:   key,
		SizeBytes: int64(len(data)),
		MimeType:  mimeType,
		ETag:      info.ETag,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.files.SetContent(ctx, content); err != nil {
		if _, derr := s.blobs.Delete(ctx, key); derr != nil {
			slog.Warn("failed to remove orphaned blob",
				slog.String("key", key),
				slog.String("error", derr.Error()))
		}
		return nil, fmt.Errorf("failed to record content: %w", err)
	}

	if previous, _ := row["blob_key"].(string); previous != "" && previous != key {
		if _, err := s.blobs.Delete(ctx, previous); err != nil {
			slog.Warn("failed to remove replaced blob",
				slog.String("key", previous),
				slog.String("error", err.Error()))
		}
	}

	s.metrics.Mutation(s.table.Name, "content")
	return &content, nil
}

// OpenContent returns a presigned URL for the content when the store supports
// it, otherwise an open stream.
func (s *FileService) OpenContent(ctx context.Context, p *xtable.Principal, fileID string) (*model.FileDownload, error) {
	if !s.table.CanView(p) {
		return nil, ErrNotAuthorized
	}
	row, err := s.load(ctx, p, fileID)
	if err != nil {
		return nil, err
	}
	key, _ := row["blob_key"].(string)
	if key == "" {
		return nil, ErrNoContent
	}
	name, _ := row[fileNameMember].(string)
	mimeType, _ := row["mime_type"].(string)
	size, _ := xtable.AsInt64(row["size_bytes"])

	url, err := s.blobs.PresignURL(ctx, key, blob.SignedURLOptions{Expiry: s.expiry, Filename: name})
	if err == nil {
		return &model.FileDownload{URL: url, MimeType: mimeType, Size: size, Name: name}, nil
	}
	if !errors.Is(err, blob.ErrUnsupported) {
		return nil, fmt.Errorf("failed to presign content: %w", err)
	}

	info, body, err := s.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, ErrNoContent
		}
		return nil, fmt.Errorf("failed to open content: %w", err)
	}
	if info.ContentType != "" {
		mimeType = info.ContentType
	}
	return &model.FileDownload{Body: body, MimeType: mimeType, Size: info.Size, Name: name}, nil
}

// PurgeDeleted removes the content and rows of files soft-deleted more than
// olderThan ago. It returns how many files were purged.
func (s *FileService) PurgeDeleted(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	links := s.registry.LinksTo(s.table.Name)
	purged := 0
	failed := map[string]bool{}

	// failed rows stay listed, so each batch is widened by their count
	for {
		limit := purgeBatchSize + len(failed)
		batch, err := s.files.ListPurgeable(ctx, cutoff, limit)
		if err != nil {
			return purged, fmt.Errorf("failed to list purgeable files: %w", err)
		}
		attempted := 0
		for _, f := range batch {
			if failed[f.FileID] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return purged, err
			}
			attempted++
			if err := s.purge(ctx, f, links); err != nil {
				slog.Warn("failed to purge file",
					slog.String("file_id", f.FileID),
					slog.String("error", err.Error()))
				failed[f.FileID] = true
				continue
			}
			purged++
		}
		if attempted == 0 || len(batch) < limit {
			break
		}
	}

	s.metrics.Purged(purged)
	return purged, nil
}

func (s *FileService) purge(ctx context.Context, f model.FileContent, links []xtable.AssociationLink) error {
	if f.BlobKey != "" {
		if _, err := s.blobs.Delete(ctx, f.BlobKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
			return fmt.Errorf("delete blob: %w", err)
		}
	}
	if err := s.files.Purge(ctx, f.FileID, links); err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("delete row: %w", err)
	}
	return nil
}

func (s *FileService) load(ctx context.Context, p *xtable.Principal, fileID string) (xtable.Row, error) {
	row, err := s.files.Get(ctx, fileID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	if !s.table.RowVisible(p, row) {
		return nil, ErrFileNotFound
	}
	return row, nil
}
