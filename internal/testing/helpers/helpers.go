// Package helpers provides common test utilities for e2e testing.
//
// This package includes an in-process server wired like cmd/server, HTTP
// request builders, response validators, and database assertion helpers.
package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/blob"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/cache"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/handler"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/middleware"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/repository"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/schema"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/service"
)

// ============================================================================
// Server Helpers
// ============================================================================

// Server is the API wired over a test database, an in-memory blob store and
// an in-memory cache.
type Server struct {
	Handler http.Handler
	Blobs   *blob.Memory
	Cache   *cache.Memory
	Files   *service.FileService
}

// NewServer wires repositories, services, handlers and middleware the way
// cmd/server does.
func NewServer(t *testing.T, db database.Database) *Server {
	t.Helper()

	registry := schema.New()
	blobs := blob.NewMemory()
	c := cache.NewMemory()

	tables := service.NewTableService(service.TableServiceConfig{
		Registry:     registry,
		Rows:         repository.NewTableRepository(db),
		Associations: repository.NewAssociationRepository(db),
		Cache:        c,
	})
	principals := service.NewPrincipalService(service.PrincipalServiceConfig{
		Repo:  repository.NewUserRepository(db),
		Cache: c,
	})
	files, err := service.NewFileService(service.FileServiceConfig{
		Files:           repository.NewFileRepository(db),
		Blobs:           blobs,
		Registry:        registry,
		MaxContentBytes: 1 << 20,
	})
	if err != nil {
		t.Fatalf("helpers: failed to create file service: %v", err)
	}
	linkTable, _ := registry.Lookup(schema.TableCustomLink)
	links := service.NewLinkService(repository.NewCustomLinkRepository(db), linkTable)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.NewHealthHandler(db).Health)
	handler.NewTableHandler(tables).RegisterRoutes(mux)
	handler.NewFileHandler(files).RegisterRoutes(mux)
	handler.NewLinkHandler(links).RegisterRoutes(mux)

	return &Server{
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Recovery,
			middleware.Identity(principals),
			middleware.Idempotency(middleware.NewIdempotencyStore(c, middleware.IdempotencyConfig{})),
		),
		Blobs: blobs,
		Cache: c,
		Files: files,
	}
}

// Do serves req and returns the recorded response.
func (s *Server) Do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	return rr
}

// ============================================================================
// HTTP Request Helpers
// ============================================================================

// RequestBuilder helps construct HTTP requests for testing
type RequestBuilder struct {
	t       *testing.T
	method  string
	path    string
	body    interface{}
	raw     []byte
	headers map[string]string
}

// NewRequest creates a new request builder
func NewRequest(t *testing.T, method, path string) *RequestBuilder {
	t.Helper()
	return &RequestBuilder{
		t:       t,
		method:  method,
		path:    path,
		headers: make(map[string]string),
	}
}

// WithBody sets the request body (will be JSON encoded)
func (rb *RequestBuilder) WithBody(body interface{}) *RequestBuilder {
	rb.body = body
	return rb
}

// WithRawBody sends b as is with the given content type.
func (rb *RequestBuilder) WithRawBody(b []byte, contentType string) *RequestBuilder {
	rb.raw = b
	rb.headers["Content-Type"] = contentType
	return rb
}

// WithHeader adds a header to the request
func (rb *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	rb.headers[key] = value
	return rb
}

// AsUser acts as userID ("user:abc" or "abc").
func (rb *RequestBuilder) AsUser(userID string) *RequestBuilder {
	rb.headers[middleware.UserIDHeader] = userID
	return rb
}

// AsAdmin acts as userID with the admin intention.
func (rb *RequestBuilder) AsAdmin(userID string) *RequestBuilder {
	rb.headers[middleware.UserIDHeader] = userID
	rb.headers[middleware.IntentionHeader] = "admin"
	return rb
}

// Build creates the HTTP request
func (rb *RequestBuilder) Build() *http.Request {
	rb.t.Helper()

	var bodyReader io.Reader
	switch {
	case rb.raw != nil:
		bodyReader = bytes.NewReader(rb.raw)
	case rb.body != nil:
		bodyBytes, err := json.Marshal(rb.body)
		if err != nil {
			rb.t.Fatalf("helpers: failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(rb.method, rb.path, bodyReader)

	// Set content type for requests with body
	if rb.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range rb.headers {
		req.Header.Set(k, v)
	}
	return req
}

// ============================================================================
// Response Assertion Helpers
// ============================================================================

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, resp *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if resp.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, resp.Code, resp.Body.String())
	}
}

// AssertProblemDetails validates an RFC 9457 Problem Details error response
func AssertProblemDetails(t *testing.T, resp *httptest.ResponseRecorder, expectedStatus int, expectedCode model.ErrorCode) {
	t.Helper()

	AssertStatus(t, resp, expectedStatus)

	var problem model.ProblemDetails
	bodyBytes := resp.Body.Bytes()
	if err := json.Unmarshal(bodyBytes, &problem); err != nil {
		t.Fatalf("failed to decode problem details: %v. Body: %s", err, string(bodyBytes))
	}

	if problem.Status != expectedStatus {
		t.Errorf("expected problem.status %d, got %d", expectedStatus, problem.Status)
	}
	if expectedCode != 0 && problem.Code != expectedCode {
		t.Errorf("expected problem.code %d, got %d", expectedCode, problem.Code)
	}
}

// AssertValidationError checks for a validation error on a specific field
func AssertValidationError(t *testing.T, resp *httptest.ResponseRecorder, field string) {
	t.Helper()

	AssertStatus(t, resp, http.StatusUnprocessableEntity)

	var problem model.ProblemDetails
	if err := json.Unmarshal(resp.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to decode problem details: %v", err)
	}

	for _, fe := range problem.Errors {
		if fe.Field == field {
			return
		}
	}
	t.Errorf("expected validation error on field %q, but not found. Errors: %+v", field, problem.Errors)
}

// DecodeResponse decodes the response body into the given struct
func DecodeResponse(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	bodyBytes := resp.Body.Bytes()
	if err := json.Unmarshal(bodyBytes, v); err != nil {
		t.Fatalf("failed to decode response: %v. Body: %s", err, string(bodyBytes))
	}
}

// GetDataFromResponse extracts the "data" object from a standard response
func GetDataFromResponse(t *testing.T, resp *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var response struct {
		Data map[string]interface{} `json:"data"`
	}
	DecodeResponse(t, resp, &response)
	return response.Data
}

// GetRowsFromResponse extracts the "data" array from a collection response
func GetRowsFromResponse(t *testing.T, resp *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()

	var response struct {
		Data []map[string]interface{} `json:"data"`
	}
	DecodeResponse(t, resp, &response)
	return response.Data
}

// ============================================================================
// Database Assertion Helpers
// ============================================================================

// GetRecord loads one record by qualified id, or nil when it doesn't exist.
func GetRecord(t *testing.T, db database.Database, id string) map[string]interface{} {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	table, key, ok := strings.Cut(id, ":")
	if !ok {
		t.Fatalf("helpers: %q is not a qualified record id", id)
	}

	results, err := db.Query(ctx, "SELECT * FROM type::thing($table, $id)", map[string]interface{}{
		"table": table,
		"id":    key,
	})
	if err != nil {
		t.Fatalf("failed to query for record: %v", err)
	}
	return firstResult(results)
}

// AssertRecordExists checks that a record exists in the database
func AssertRecordExists(t *testing.T, db database.Database, id string) {
	t.Helper()
	if GetRecord(t, db, id) == nil {
		t.Errorf("expected record %s to exist, but it doesn't", id)
	}
}

// AssertRecordNotExists checks that a record does not exist
func AssertRecordNotExists(t *testing.T, db database.Database, id string) {
	t.Helper()
	if GetRecord(t, db, id) != nil {
		t.Errorf("expected record %s to not exist, but it does", id)
	}
}

// firstResult returns the first row of the first statement result.
func firstResult(results []interface{}) map[string]interface{} {
	if len(results) == 0 {
		return nil
	}
	resp, ok := results[0].(map[string]interface{})
	if !ok {
		return nil
	}
	switch v := resp["result"].(type) {
	case []interface{}:
		if len(v) == 0 {
			return nil
		}
		row, _ := v[0].(map[string]interface{})
		return row
	case map[string]interface{}:
		return v
	}
	return nil
}
