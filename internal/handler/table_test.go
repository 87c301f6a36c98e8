package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/changeplan"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/middleware"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/service"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// ============================================================================
// Mock TableService
// ============================================================================

type mockTableService struct {
	listTablesFunc      func(p *xtable.Principal) []model.TableInfo
	clientSpecFunc      func(p *xtable.Principal, table string) (*xtable.ClientSpec, error)
	queryFunc           func(ctx context.Context, p *xtable.Principal, table string, req xtable.QueryRequest) (*model.TableQueryResult, error)
	getFunc             func(ctx context.Context, p *xtable.Principal, table, id string) (xtable.Row, error)
	insertFunc          func(ctx context.Context, p *xtable.Principal, table string, input xtable.Row) (xtable.Row, error)
	updateFunc          func(ctx context.Context, p *xtable.Principal, table, id string, input xtable.Row) (xtable.Row, error)
	deleteFunc          func(ctx context.Context, p *xtable.Principal, table, id string) error
	optionsFunc         func(ctx context.Context, p *xtable.Principal, table, member string) (*model.OptionsResponse, error)
	setAssociationsFunc func(ctx context.Context, p *xtable.Principal, table, id, member string, ids []string) (*model.AssociationResult, error)
}

func (m *mockTableService) ListTables(p *xtable.Principal) []model.TableInfo {
	if m.listTablesFunc != nil {
		return m.listTablesFunc(p)
	}
	return nil
}

func (m *mockTableService) ClientSpec(p *xtable.Principal, table string) (*xtable.ClientSpec, error) {
	if m.clientSpecFunc != nil {
		return m.clientSpecFunc(p, table)
	}
	return nil, service.ErrTableNotFound
}

func (m *mockTableService) Query(ctx context.Context, p *xtable.Principal, table string, req xtable.QueryRequest) (*model.TableQueryResult, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, p, table, req)
	}
	return &model.TableQueryResult{}, nil
}

func (m *mockTableService) Get(ctx context.Context, p *xtable.Principal, table, id string) (xtable.Row, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, p, table, id)
	}
	return nil, service.ErrRowNotFound
}

func (m *mockTableService) Insert(ctx context.Context, p *xtable.Principal, table string, input xtable.Row) (xtable.Row, error) {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, p, table, input)
	}
	return input, nil
}

func (m *mockTableService) Update(ctx context.Context, p *xtable.Principal, table, id string, input xtable.Row) (xtable.Row, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, p, table, id, input)
	}
	return input, nil
}

func (m *mockTableService) Delete(ctx context.Context, p *xtable.Principal, table, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, p, table, id)
	}
	return nil
}

func (m *mockTableService) Options(ctx context.Context, p *xtable.Principal, table, member string) (*model.OptionsResponse, error) {
	if m.optionsFunc != nil {
		return m.optionsFunc(ctx, p, table, member)
	}
	return &model.OptionsResponse{}, nil
}

func (m *mockTableService) SetAssociations(ctx context.Context, p *xtable.Principal, table, id, member string, ids []string) (*model.AssociationResult, error) {
	if m.setAssociationsFunc != nil {
		return m.setAssociationsFunc(ctx, p, table, id, member, ids)
	}
	return &model.AssociationResult{Member: member, IDs: ids}, nil
}

// ============================================================================
// Helpers
// ============================================================================

func newTableMux(svc TableService) *http.ServeMux {
	mux := http.NewServeMux()
	NewTableHandler(svc).RegisterRoutes(mux)
	return mux
}

func makeJSONRequest(method, path string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withPrincipal(req *http.Request, p *xtable.Principal) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), p))
}

func parseErrorResponse(t *testing.T, body []byte) *model.ProblemDetails {
	t.Helper()
	var problem model.ProblemDetails
	if err := json.Unmarshal(body, &problem); err != nil {
		t.Fatalf("failed to parse problem response: %v", err)
	}
	return &problem
}

func parseData(t *testing.T, body []byte, v interface{}) map[string]string {
	t.Helper()
	var resp struct {
		Data  json.RawMessage   `json:"data"`
		Links map[string]string `json:"_links"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("failed to parse data: %v", err)
	}
	return resp.Links
}

var testEditor = xtable.NewPrincipal("user:alice", false, "edit_events", "view_events")

// ============================================================================
// Tests
// ============================================================================

func TestListTables_UsesPrincipalFromContext(t *testing.T) {
	t.Parallel()

	var got *xtable.Principal
	svc := &mockTableService{listTablesFunc: func(p *xtable.Principal) []model.TableInfo {
		got = p
		return []model.TableInfo{{Name: "event", Label: "Events", CanEdit: true}}
	}}

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/v1/tables", nil), testEditor)
	rr := httptest.NewRecorder()
	newTableMux(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if got != testEditor {
		t.Error("expected the context principal to be passed through")
	}
	var tables []model.TableInfo
	parseData(t, rr.Body.Bytes(), &tables)
	if len(tables) != 1 || tables[0].Name != "event" {
		t.Errorf("unexpected tables %+v", tables)
	}
}

func TestGetSpec_UnknownTable_Returns404(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/v1/tables/nope/spec", nil)
	rr := httptest.NewRecorder()
	newTableMux(&mockTableService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected problem content type, got %q", ct)
	}
}

func TestQuery_ReturnsPage(t *testing.T) {
	t.Parallel()

	var gotReq xtable.QueryRequest
	svc := &mockTableService{queryFunc: func(_ context.Context, _ *xtable.Principal, table string, req xtable.QueryRequest) (*model.TableQueryResult, error) {
		gotReq = req
		return &model.TableQueryResult{
			Rows:     []xtable.Row{{"id": "event:spring", "name": "Spring Concert"}},
			Total:    25,
			Page:     1,
			PageSize: 10,
		}, nil
	}}

	req := makeJSONRequest(http.MethodPost, "/v1/tables/event/query", xtable.QueryRequest{Page: 1, PageSize: 10, Quick: "spring"})
	rr := httptest.NewRecorder()
	newTableMux(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if gotReq.Quick != "spring" || gotReq.PageSize != 10 {
		t.Errorf("query not decoded: %+v", gotReq)
	}

	var resp CollectionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Pagination == nil || resp.Pagination.Total != 25 || !resp.Pagination.HasMore {
		t.Errorf("unexpected pagination %+v", resp.Pagination)
	}
}

func TestQuery_EmptyBody_UsesDefaults(t *testing.T) {
	t.Parallel()

	called := false
	svc := &mockTableService{queryFunc: func(_ context.Context, _ *xtable.Principal, _ string, req xtable.QueryRequest) (*model.TableQueryResult, error) {
		called = true
		if req.Page != 0 || req.Quick != "" {
			t.Errorf("expected zero request, got %+v", req)
		}
		return &model.TableQueryResult{PageSize: xtable.DefaultPageSize}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/v1/tables/event/query", nil)
	rr := httptest.NewRecorder()
	newTableMux(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || !called {
		t.Errorf("expected service call and 200, got %d", rr.Code)
	}
}

func TestQuery_UnknownField_Returns400(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/v1/tables/event/query", strings.NewReader(`{"pagesize": 5}`))
	rr := httptest.NewRecorder()
	newTableMux(&mockTableService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestCreateRow_ReturnsCreatedWithLocation(t *testing.T) {
	t.Parallel()

	svc := &mockTableService{insertFunc: func(_ context.Context, p *xtable.Principal, table string, input xtable.Row) (xtable.Row, error) {
		if table != "event" {
			t.Errorf("expected table event, got %q", table)
		}
		out := xtable.Row{"id": "event:spring"}
		for k, v := range input {
			out[k] = v
		}
		return out, nil
	}}

	req := withPrincipal(makeJSONRequest(http.MethodPost, "/v1/tables/event/rows", map[string]any{"name": "Spring Concert"}), testEditor)
	rr := httptest.NewRecorder()
	newTableMux(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/v1/tables/event/rows/event:spring" {
		t.Errorf("unexpected Location %q", loc)
	}
	var row xtable.Row
	links := parseData(t, rr.Body.Bytes(), &row)
	if row["name"] != "Spring Concert" {
		t.Errorf("unexpected row %+v", row)
	}
	if links["self"] == "" {
		t.Error("expected self link")
	}
}

func TestCreateRow_ServiceErrors(t *testing.T) {
	t.Parallel()

	verr := &xtable.ValidationError{}
	verr.Add("name", "is required")

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", verr, http.StatusUnprocessableEntity},
		{"not authorized", service.ErrNotAuthorized, http.StatusForbidden},
		{"conflict", service.ErrConflict, http.StatusConflict},
		{"unknown table", service.ErrTableNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &mockTableService{insertFunc: func(context.Context, *xtable.Principal, string, xtable.Row) (xtable.Row, error) {
				return nil, tt.err
			}}
			req := makeJSONRequest(http.MethodPost, "/v1/tables/event/rows", map[string]any{"description": "x"})
			rr := httptest.NewRecorder()
			newTableMux(svc).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
		})
	}
}

func TestCreateRow_ValidationError_ListsFields(t *testing.T) {
	t.Parallel()

	svc := &mockTableService{insertFunc: func(context.Context, *xtable.Principal, string, xtable.Row) (xtable.Row, error) {
		verr := &xtable.ValidationError{}
		verr.Add("name", "is required")
		verr.Add("slug", "is read-only")
		return nil, verr
	}}

	req := makeJSONRequest(http.MethodPost, "/v1/tables/event/rows", map[string]any{})
	rr := httptest.NewRecorder()
	newTableMux(svc).ServeHTTP(rr, req)

	problem := parseErrorResponse(t, rr.Body.Bytes())
	if len(problem.Errors) != 2 || problem.Errors[0].Field != "name" {
		t.Errorf("unexpected field errors %+v", problem.Errors)
	}
}

func TestCreateRow_NonObjectBody_Returns400(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`[1,2]`, `null`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/tables/event/rows", strings.NewReader(body))
		rr := httptest.NewRecorder()
		newTableMux(&mockTableService{}).ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected status %d, got %d", body, http.StatusBadRequest, rr.Code)
		}
	}
}

func TestUpdateRow_PassesPathValues(t *testing.T) {
	t.Parallel()

	var gotTable, gotID string
	svc := &mockTableService{updateFunc: func(_ context.Context, _ *xtable.Principal, table, id string, input xtable.Row) (xtable.Row, error) {
		gotTable, gotID = table, id
		return xtable.Row{"id": "event:" + id, "location": input["location"]}, nil
	}}

	req := makeJSONRequest(http.MethodPatch, "/v1/tables/event/rows/spring", map[string]any{"location": "Park"})
	rr := httptest.NewRecorder()
	newTableMux(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if gotTable != "event" || gotID != "spring" {
		t.Errorf("unexpected path values %q %q", gotTable, gotID)
	}
}

func TestGetRow_NotFound(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/v1/tables/event/rows/missing", nil)
	rr := httptest.NewRecorder()
	newTableMux(&mockTableService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
	problem := parseErrorResponse(t, rr.Body.Bytes())
	if problem.Detail != "row not found" {
		t.Errorf("unexpected detail %q", problem.Detail)
	}
}

func TestDeleteRow_ReturnsNoContent(t *testing.T) {
	t.Parallel()

	deleted := ""
	svc := &mockTableService{deleteFunc: func(_ context.Context, _ *xtable.Principal, table, id string) error {
		deleted = table + "/" + id
		return nil
	}}

	req := httptest.NewRequest(http.MethodDelete, "/v1/tables/song/rows/anthem", nil)
	rr := httptest.NewRecorder()
	newTableMux(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rr.Code)
	}
	if deleted != "song/anthem" {
		t.Errorf("unexpected delete target %q", deleted)
	}
}

func TestGetOptions(t *testing.T) {
	t.Parallel()

	svc := &mockTableService{optionsFunc: func(_ context.Context, _ *xtable.Principal, table, member string) (*model.OptionsResponse, error) {
		if member == "status" {
			return nil, service.ErrNotOptionField
		}
		return &model.OptionsResponse{
			Table: table, Member: member, ForeignTable: "event_tag",
			Options: []model.OptionItem{{ID: "event_tag:gig", Label: "Gig", UsageCount: 4}},
		}, nil
	}}
	mux := newTableMux(svc)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tables/event/fields/tags/options", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var opts model.OptionsResponse
	parseData(t, rr.Body.Bytes(), &opts)
	if len(opts.Options) != 1 || opts.Options[0].UsageCount != 4 {
		t.Errorf("unexpected options %+v", opts)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tables/event/fields/status/options", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status %d for a plain field, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestSetAssociations(t *testing.T) {
	t.Parallel()

	var gotIDs []string
	svc := &mockTableService{setAssociationsFunc: func(_ context.Context, _ *xtable.Principal, table, id, member string, ids []string) (*model.AssociationResult, error) {
		gotIDs = ids
		return &model.AssociationResult{Member: member, IDs: ids, Counts: changeplan.Counts{Create: 1, Delete: 2}}, nil
	}}

	req := makeJSONRequest(http.MethodPut, "/v1/tables/event/rows/spring/associations/tags", model.SetAssociationsRequest{IDs: []string{"event_tag:gig"}})
	rr := httptest.NewRecorder()
	newTableMux(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if len(gotIDs) != 1 || gotIDs[0] != "event_tag:gig" {
		t.Errorf("unexpected ids %v", gotIDs)
	}
	var result model.AssociationResult
	parseData(t, rr.Body.Bytes(), &result)
	if result.Counts.Delete != 2 {
		t.Errorf("unexpected counts %+v", result.Counts)
	}
}

func TestSetAssociations_MissingIDs_Returns422(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPut, "/v1/tables/event/rows/spring/associations/tags", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	newTableMux(&mockTableService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, rr.Code)
	}
}
