package xtable

import (
	"errors"
	"strings"
)

var (
	errRequired   = errors.New("is required")
	errReadOnly   = errors.New("is read-only")
	errNotAllowed = errors.New("not permitted")
)

// FieldError is a validation failure on one member.
type FieldError struct {
	Member  string `json:"member"`
	Message string `json:"message"`
}

// ValidationError collects every field failure of a mutation or query.
type ValidationError struct {
	Errors []FieldError
}

// Add records a failure for member.
func (e *ValidationError) Add(member, message string) {
	e.Errors = append(e.Errors, FieldError{Member: member, Message: message})
}

// ErrOrNil returns e when it holds failures, else nil.
func (e *ValidationError) ErrOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Member+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Messages returns the failures keyed by member, first message wins.
func (e *ValidationError) Messages() map[string]string {
	out := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		if _, ok := out[fe.Member]; !ok {
			out[fe.Member] = fe.Message
		}
	}
	return out
}
