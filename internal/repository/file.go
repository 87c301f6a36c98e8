package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

const fileTable = "file"

// FileRepository manages the storage columns of file rows, which the table
// API treats as read-only.
type FileRepository struct {
	db database.Database
}

// NewFileRepository creates a new file repository
func NewFileRepository(db database.Database) *FileRepository {
	return &FileRepository{db: db}
}

// Get returns a file row, deleted or not.
func (r *FileRepository) Get(ctx context.Context, id string) (xtable.Row, error) {
	recordID, ok := xtable.QualifyID(fileTable, id)
	if !ok {
		return nil, database.ErrNotFound
	}
	result, err := r.db.QueryOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": recordID})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	row, ok := result.(map[string]interface{})
	if !ok {
		return nil, database.ErrNotFound
	}
	return normalizeRow(row), nil
}

// SetContent points a file row at a new blob.
func (r *FileRepository) SetContent(ctx context.Context, c model.FileContent) error {
	query := `
		UPDATE type::record($id) SET
			blob_key = $blob_key,
			size_bytes = $size_bytes,
			mime_type = $mime_type,
			content_updated_at = <datetime> $updated_at
	`
	vars := map[string]interface{}{
		"id":         c.FileID,
		"blob_key":   c.BlobKey,
		"size_bytes": c.SizeBytes,
		"mime_type":  c.MimeType,
		"updated_at": c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := r.db.Execute(ctx, query, vars); err != nil {
		return fmt.Errorf("failed to set file content: %w", err)
	}
	return nil
}

// ListPurgeable returns soft-deleted files deleted before cutoff.
func (r *FileRepository) ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]model.FileContent, error) {
	query := `
		SELECT id, blob_key, size_bytes, mime_type, deleted_at FROM file
		WHERE is_deleted = true AND deleted_at != NONE AND deleted_at < <datetime> $cutoff
		ORDER BY deleted_at
		LIMIT $limit
	`
	results, err := r.db.Query(ctx, query, map[string]interface{}{
		"cutoff": cutoff.UTC().Format(time.RFC3339Nano),
		"limit":  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list purgeable files: %w", err)
	}

	rows := statementRows(results, 0)
	out := make([]model.FileContent, 0, len(rows))
	for _, row := range rows {
		c := model.FileContent{FileID: xtable.RecordIDString(row["id"])}
		c.BlobKey, _ = row["blob_key"].(string)
		c.MimeType, _ = row["mime_type"].(string)
		c.SizeBytes, _ = xtable.AsInt64(row["size_bytes"])
		out = append(out, c)
	}
	return out, nil
}

// Purge removes a file row and its association rows.
func (r *FileRepository) Purge(ctx context.Context, id string, links []xtable.AssociationLink) error {
	recordID, ok := xtable.QualifyID(fileTable, id)
	if !ok {
		return database.ErrNotFound
	}
	if err := deleteWithLinks(ctx, r.db, recordID, links); err != nil {
		return fmt.Errorf("failed to purge file: %w", err)
	}
	return nil
}
