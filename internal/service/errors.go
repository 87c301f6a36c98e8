package service

import "errors"

// Centralized service layer errors.
// Validation failures are returned as *xtable.ValidationError rather than a sentinel.

// ===== Table Errors =====
var (
	ErrTableNotFound       = errors.New("table not found")
	ErrRowNotFound         = errors.New("row not found")
	ErrNotAuthorized       = errors.New("not authorized to perform this action")
	ErrFieldNotFound       = errors.New("field not found")
	ErrNotAssociationField = errors.New("field is not an association")
	ErrNotOptionField      = errors.New("field has no options")
	ErrConflict            = errors.New("row conflicts with an existing row")
)

// ===== Identity Errors =====
var (
	ErrUnknownUser = errors.New("unknown user")
)

// ===== File Errors =====
var (
	ErrFileNotFound    = errors.New("file not found")
	ErrNoContent       = errors.New("file has no content")
	ErrContentTooLarge = errors.New("file content exceeds the size limit")
)

// ===== Link Errors =====
var (
	ErrLinkNotFound = errors.New("link not found")
)
