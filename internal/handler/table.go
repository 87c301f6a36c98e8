package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/middleware"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// TableService is the generic row API the table handler serves.
type TableService interface {
	ListTables(p *xtable.Principal) []model.TableInfo
	ClientSpec(p *xtable.Principal, table string) (*xtable.ClientSpec, error)
	Query(ctx context.Context, p *xtable.Principal, table string, req xtable.QueryRequest) (*model.TableQueryResult, error)
	Get(ctx context.Context, p *xtable.Principal, table, id string) (xtable.Row, error)
	Insert(ctx context.Context, p *xtable.Principal, table string, input xtable.Row) (xtable.Row, error)
	Update(ctx context.Context, p *xtable.Principal, table, id string, input xtable.Row) (xtable.Row, error)
	Delete(ctx context.Context, p *xtable.Principal, table, id string) error
	Options(ctx context.Context, p *xtable.Principal, table, member string) (*model.OptionsResponse, error)
	SetAssociations(ctx context.Context, p *xtable.Principal, table, id, member string, ids []string) (*model.AssociationResult, error)
}

// TableHandler serves every registered table through one set of routes.
type TableHandler struct {
	tables TableService
}

// NewTableHandler creates a new table handler
func NewTableHandler(tables TableService) *TableHandler {
	return &TableHandler{tables: tables}
}

// RegisterRoutes registers table routes
func (h *TableHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/tables", h.ListTables)
	mux.HandleFunc("GET /v1/tables/{table}/spec", h.GetSpec)
	mux.HandleFunc("POST /v1/tables/{table}/query", h.Query)

	mux.HandleFunc("POST /v1/tables/{table}/rows", h.CreateRow)
	mux.HandleFunc("GET /v1/tables/{table}/rows/{id}", h.GetRow)
	mux.HandleFunc("PATCH /v1/tables/{table}/rows/{id}", h.UpdateRow)
	mux.HandleFunc("DELETE /v1/tables/{table}/rows/{id}", h.DeleteRow)

	mux.HandleFunc("GET /v1/tables/{table}/fields/{member}/options", h.GetOptions)
	mux.HandleFunc("PUT /v1/tables/{table}/rows/{id}/associations/{member}", h.SetAssociations)
}

// ListTables handles GET /v1/tables
func (h *TableHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	WriteData(w, http.StatusOK, h.tables.ListTables(p), nil)
}

// GetSpec handles GET /v1/tables/{table}/spec
func (h *TableHandler) GetSpec(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	spec, err := h.tables.ClientSpec(middleware.GetPrincipal(r.Context()), table)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}
	WriteData(w, http.StatusOK, spec, map[string]string{
		"query": "/v1/tables/" + table + "/query",
	})
}

// Query handles POST /v1/tables/{table}/query. An empty body asks for the
// first page in default order.
func (h *TableHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req xtable.QueryRequest
	if err := DecodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, model.NewBadRequestError("invalid query body"))
		return
	}

	result, err := h.tables.Query(r.Context(), middleware.GetPrincipal(r.Context()), r.PathValue("table"), req)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteCollection(w, http.StatusOK, result.Rows, &PaginationInfo{
		Page:     result.Page,
		PageSize: result.PageSize,
		Total:    result.Total,
		HasMore:  (result.Page+1)*result.PageSize < result.Total,
	}, nil)
}

// GetRow handles GET /v1/tables/{table}/rows/{id}
func (h *TableHandler) GetRow(w http.ResponseWriter, r *http.Request) {
	table, id := r.PathValue("table"), r.PathValue("id")
	row, err := h.tables.Get(r.Context(), middleware.GetPrincipal(r.Context()), table, id)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}
	WriteData(w, http.StatusOK, row, rowLinks(table, row))
}

// CreateRow handles POST /v1/tables/{table}/rows
func (h *TableHandler) CreateRow(w http.ResponseWriter, r *http.Request) {
	var input xtable.Row
	if err := DecodeJSON(w, r, &input); err != nil || input == nil {
		WriteError(w, model.NewBadRequestError("request body must be a JSON object"))
		return
	}

	table := r.PathValue("table")
	row, err := h.tables.Insert(r.Context(), middleware.GetPrincipal(r.Context()), table, input)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	links := rowLinks(table, row)
	if self, ok := links["self"]; ok {
		w.Header().Set("Location", self)
	}
	WriteData(w, http.StatusCreated, row, links)
}

// UpdateRow handles PATCH /v1/tables/{table}/rows/{id}. Only members present
// in the body are changed.
func (h *TableHandler) UpdateRow(w http.ResponseWriter, r *http.Request) {
	var input xtable.Row
	if err := DecodeJSON(w, r, &input); err != nil || input == nil {
		WriteError(w, model.NewBadRequestError("request body must be a JSON object"))
		return
	}

	table, id := r.PathValue("table"), r.PathValue("id")
	row, err := h.tables.Update(r.Context(), middleware.GetPrincipal(r.Context()), table, id, input)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}
	WriteData(w, http.StatusOK, row, rowLinks(table, row))
}

// DeleteRow handles DELETE /v1/tables/{table}/rows/{id}
func (h *TableHandler) DeleteRow(w http.ResponseWriter, r *http.Request) {
	err := h.tables.Delete(r.Context(), middleware.GetPrincipal(r.Context()), r.PathValue("table"), r.PathValue("id"))
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}
	WriteNoContent(w)
}

// GetOptions handles GET /v1/tables/{table}/fields/{member}/options
func (h *TableHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.tables.Options(r.Context(), middleware.GetPrincipal(r.Context()), r.PathValue("table"), r.PathValue("member"))
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}
	WriteData(w, http.StatusOK, opts, nil)
}

// SetAssociations handles PUT /v1/tables/{table}/rows/{id}/associations/{member}
func (h *TableHandler) SetAssociations(w http.ResponseWriter, r *http.Request) {
	var req model.SetAssociationsRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	if req.IDs == nil {
		WriteError(w, model.NewValidationError([]model.FieldError{{Field: "ids", Message: "is required"}}))
		return
	}

	table, id := r.PathValue("table"), r.PathValue("id")
	result, err := h.tables.SetAssociations(r.Context(), middleware.GetPrincipal(r.Context()), table, id, r.PathValue("member"), req.IDs)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}
	WriteData(w, http.StatusOK, result, map[string]string{
		"row": "/v1/tables/" + table + "/rows/" + id,
	})
}

func rowLinks(table string, row xtable.Row) map[string]string {
	id := xtable.RecordIDString(row["id"])
	if id == "" {
		return nil
	}
	return map[string]string{"self": "/v1/tables/" + table + "/rows/" + id}
}
