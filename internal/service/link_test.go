package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/schema"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

type mockLinkRepo struct {
	getBySlugFunc func(ctx context.Context, slug string) (xtable.Row, error)
}

func (m *mockLinkRepo) GetBySlug(ctx context.Context, slug string) (xtable.Row, error) {
	if m.getBySlugFunc != nil {
		return m.getBySlugFunc(ctx, slug)
	}
	return nil, database.ErrNotFound
}

func newTestLinkService(t *testing.T, row xtable.Row) *LinkService {
	t.Helper()
	table, ok := schema.New().Lookup(schema.TableCustomLink)
	if !ok {
		t.Fatal("custom link table not registered")
	}
	repo := &mockLinkRepo{
		getBySlugFunc: func(_ context.Context, slug string) (xtable.Row, error) {
			if row == nil || row["slug"] != slug {
				return nil, database.ErrNotFound
			}
			return row, nil
		},
	}
	return NewLinkService(repo, table)
}

func TestLinkResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		row        xtable.Row
		slug       string
		query      string
		wantURL    string
		wantStatus int
	}{
		{
			name:       "temporary redirect",
			row:        xtable.Row{"slug": "tour", "destination_url": "https://example.org/tour", "redirect_type": "temporary"},
			slug:       "tour",
			wantURL:    "https://example.org/tour",
			wantStatus: http.StatusFound,
		},
		{
			name:       "permanent redirect",
			row:        xtable.Row{"slug": "tour", "destination_url": "https://example.org/tour", "redirect_type": "permanent"},
			slug:       "Tour",
			wantURL:    "https://example.org/tour",
			wantStatus: http.StatusMovedPermanently,
		},
		{
			name:       "client redirect falls back to found",
			row:        xtable.Row{"slug": "tour", "destination_url": "https://example.org/tour", "redirect_type": "client"},
			slug:       "tour",
			wantURL:    "https://example.org/tour",
			wantStatus: http.StatusFound,
		},
		{
			name:       "query forwarded",
			row:        xtable.Row{"slug": "tour", "destination_url": "https://example.org/tour?lang=nl#dates", "forward_query": true},
			slug:       "tour",
			query:      "ref=poster",
			wantURL:    "https://example.org/tour?lang=nl&ref=poster#dates",
			wantStatus: http.StatusFound,
		},
		{
			name:       "query dropped without forwarding",
			row:        xtable.Row{"slug": "tour", "destination_url": "https://example.org/tour", "forward_query": false},
			slug:       "tour",
			query:      "ref=poster",
			wantURL:    "https://example.org/tour",
			wantStatus: http.StatusFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := newTestLinkService(t, tt.row)
			target, err := svc.Resolve(context.Background(), xtable.Anonymous(), tt.slug, tt.query)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if target.URL != tt.wantURL {
				t.Errorf("url = %q, want %q", target.URL, tt.wantURL)
			}
			if target.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", target.Status, tt.wantStatus)
			}
		})
	}
}

func TestLinkResolve_Restricted(t *testing.T) {
	t.Parallel()
	row := xtable.Row{
		"slug":                  "members",
		"destination_url":       "https://example.org/members",
		"visible_permission_id": model.PermViewEvents.RecordID(),
	}
	svc := newTestLinkService(t, row)

	if _, err := svc.Resolve(context.Background(), xtable.Anonymous(), "members", ""); !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("expected ErrLinkNotFound for anonymous, got %v", err)
	}

	member := xtable.NewPrincipal("user:m", false, model.PermViewEvents)
	if _, err := svc.Resolve(context.Background(), member, "members", ""); err != nil {
		t.Errorf("member should resolve the link: %v", err)
	}
}

func TestLinkResolve_Unknown(t *testing.T) {
	t.Parallel()
	svc := newTestLinkService(t, nil)

	if _, err := svc.Resolve(context.Background(), xtable.Anonymous(), "nothing", ""); !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("expected ErrLinkNotFound, got %v", err)
	}
	if _, err := svc.Resolve(context.Background(), xtable.Anonymous(), "  ", ""); !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("expected ErrLinkNotFound for blank slug, got %v", err)
	}
}
