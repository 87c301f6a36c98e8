package handler

import (
	"context"
	"net/http"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/middleware"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// LinkResolver maps custom link slugs to destinations.
type LinkResolver interface {
	Resolve(ctx context.Context, p *xtable.Principal, slug, rawQuery string) (*model.LinkTarget, error)
}

// LinkHandler serves custom short links
type LinkHandler struct {
	links LinkResolver
}

// NewLinkHandler creates a new link handler
func NewLinkHandler(links LinkResolver) *LinkHandler {
	return &LinkHandler{links: links}
}

// RegisterRoutes registers link routes
func (h *LinkHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /L/{slug}", h.Redirect)
}

// Redirect handles GET /L/{slug}
func (h *LinkHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	target, err := h.links.Resolve(r.Context(), middleware.GetPrincipal(r.Context()), r.PathValue("slug"), r.URL.RawQuery)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target.URL, target.Status)
}
