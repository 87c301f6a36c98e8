package model

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCode is a stable machine-readable error code.
type ErrorCode int

const (
	// Identity errors (1xxx)
	ErrCodeUnknownUser ErrorCode = 1001

	// Authorization errors (2xxx)
	ErrCodeForbidden ErrorCode = 2001

	// Resource errors (3xxx)
	ErrCodeNotFound      ErrorCode = 3001
	ErrCodeAlreadyExists ErrorCode = 3002
	ErrCodeConflict      ErrorCode = 3003

	// Validation errors (4xxx)
	ErrCodeValidation   ErrorCode = 4001
	ErrCodeInvalidInput ErrorCode = 4002
	ErrCodeTooLarge     ErrorCode = 4003

	// Internal errors (5xxx)
	ErrCodeInternal ErrorCode = 5001
	ErrCodeStorage  ErrorCode = 5002
)

const problemTypeBase = "/problems/"

// ProblemDetails is an RFC 9457 problem response.
type ProblemDetails struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
	Code     ErrorCode    `json:"code,omitempty"`
}

// FieldError is a validation failure on one member.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (p *ProblemDetails) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

// WriteJSON writes the problem with the problem+json content type.
func (p *ProblemDetails) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func problem(slug, title string, status int, detail string, code ErrorCode) *ProblemDetails {
	return &ProblemDetails{
		Type:   problemTypeBase + slug,
		Title:  title,
		Status: status,
		Detail: detail,
		Code:   code,
	}
}

func NewUnknownUserError(detail string) *ProblemDetails {
	return problem("unknown-user", "Unauthorized", http.StatusUnauthorized, detail, ErrCodeUnknownUser)
}

func NewForbiddenError(detail string) *ProblemDetails {
	return problem("forbidden", "Forbidden", http.StatusForbidden, detail, ErrCodeForbidden)
}

func NewNotFoundError(resource string) *ProblemDetails {
	return problem("not-found", "Not Found", http.StatusNotFound, fmt.Sprintf("%s not found", resource), ErrCodeNotFound)
}

// NewValidationError summarizes the first failure in Detail and lists all of them.
func NewValidationError(errors []FieldError) *ProblemDetails {
	detail := "One or more fields failed validation"
	if len(errors) > 0 {
		detail = fmt.Sprintf("%s: %s", errors[0].Field, errors[0].Message)
		if len(errors) > 1 {
			detail = fmt.Sprintf("%s (and %d more errors)", detail, len(errors)-1)
		}
	}
	p := problem("validation", "Validation Error", http.StatusUnprocessableEntity, detail, ErrCodeValidation)
	p.Errors = errors
	return p
}

func NewConflictError(detail string) *ProblemDetails {
	return problem("conflict", "Conflict", http.StatusConflict, detail, ErrCodeConflict)
}

func NewPayloadTooLargeError(limit int64) *ProblemDetails {
	return problem("too-large", "Payload Too Large", http.StatusRequestEntityTooLarge,
		fmt.Sprintf("Content exceeds the %d byte limit", limit), ErrCodeTooLarge)
}

func NewInternalError(detail string) *ProblemDetails {
	if detail == "" {
		detail = "An unexpected error occurred"
	}
	return problem("internal", "Internal Server Error", http.StatusInternalServerError, detail, ErrCodeInternal)
}

func NewServiceUnavailableError(detail string) *ProblemDetails {
	return problem("unavailable", "Service Unavailable", http.StatusServiceUnavailable, detail, ErrCodeStorage)
}

func NewBadRequestError(detail string) *ProblemDetails {
	return problem("bad-request", "Bad Request", http.StatusBadRequest, detail, ErrCodeInvalidInput)
}

func NewRateLimitError(retryAfter int) *ProblemDetails {
	return &ProblemDetails{
		Type:   problemTypeBase + "rate-limited",
		Title:  "Too Many Requests",
		Status: http.StatusTooManyRequests,
		Detail: fmt.Sprintf("Rate limit exceeded. Retry after %d seconds", retryAfter),
	}
}
