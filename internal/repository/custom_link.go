package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// CustomLinkRepository looks up short links.
type CustomLinkRepository struct {
	db database.Database
}

// NewCustomLinkRepository creates a new custom link repository
func NewCustomLinkRepository(db database.Database) *CustomLinkRepository {
	return &CustomLinkRepository{db: db}
}

// GetBySlug returns the link with slug, or database.ErrNotFound.
func (r *CustomLinkRepository) GetBySlug(ctx context.Context, slug string) (xtable.Row, error) {
	result, err := r.db.QueryOne(ctx, `SELECT * FROM custom_link WHERE slug = $slug LIMIT 1`,
		map[string]interface{}{"slug": slug})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get custom link: %w", err)
	}
	row, ok := result.(map[string]interface{})
	if !ok {
		return nil, database.ErrNotFound
	}
	return normalizeRow(row), nil
}
