package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// LinkRepository defines the interface for custom link lookup
type LinkRepository interface {
	GetBySlug(ctx context.Context, slug string) (xtable.Row, error)
}

// LinkService resolves custom short links.
type LinkService struct {
	repo  LinkRepository
	table *xtable.Table
}

// NewLinkService creates a new link service. table is the custom link table
// definition whose row-level gates apply to every lookup.
func NewLinkService(repo LinkRepository, table *xtable.Table) *LinkService {
	return &LinkService{repo: repo, table: table}
}

// Resolve returns where slug redirects to. Links hidden from p resolve as not
// found. rawQuery is appended to the destination when the link forwards queries.
func (s *LinkService) Resolve(ctx context.Context, p *xtable.Principal, slug, rawQuery string) (*model.LinkTarget, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, ErrLinkNotFound
	}

	row, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to resolve link: %w", err)
	}
	// the table gate is for editors, links themselves are public unless restricted per row
	if !s.table.RowPermitted(p, row) {
		return nil, ErrLinkNotFound
	}

	dest, _ := row["destination_url"].(string)
	if dest == "" {
		return nil, ErrLinkNotFound
	}
	if forward, _ := row["forward_query"].(bool); forward && rawQuery != "" {
		dest, err = appendQuery(dest, rawQuery)
		if err != nil {
			return nil, fmt.Errorf("invalid link destination: %w", err)
		}
	}

	redirect, _ := row["redirect_type"].(string)
	return &model.LinkTarget{URL: dest, Status: redirectStatus(redirect)}, nil
}

func redirectStatus(redirectType string) int {
	if redirectType == "permanent" {
		return http.StatusMovedPermanently
	}
	return http.StatusFound
}

// appendQuery adds rawQuery to dest, keeping dest's own parameters and fragment.
func appendQuery(dest, rawQuery string) (string, error) {
	u, err := url.Parse(dest)
	if err != nil {
		return "", err
	}
	rawQuery = strings.TrimPrefix(rawQuery, "?")
	if u.RawQuery == "" {
		u.RawQuery = rawQuery
	} else {
		u.RawQuery += "&" + rawQuery
	}
	return u.String(), nil
}
