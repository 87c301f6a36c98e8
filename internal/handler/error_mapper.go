package handler

import (
	"errors"
	"log/slog"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/service"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// MapServiceError converts a service error to a ProblemDetails response.
// Unrecognized errors are logged and reported as 500 without their message.
func MapServiceError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	var problem *model.ProblemDetails
	var verr *xtable.ValidationError

	switch {
	case errors.As(err, &problem):
		return problem

	// ===== Validation Errors → 422 =====
	case errors.As(err, &verr):
		return model.NewValidationError(fieldErrors(verr))

	// ===== Identity Errors → 401 =====
	case errors.Is(err, service.ErrUnknownUser):
		return model.NewUnknownUserError(err.Error())

	// ===== Authorization Errors → 403 =====
	case errors.Is(err, service.ErrNotAuthorized):
		return model.NewForbiddenError(err.Error())

	// ===== Not Found Errors → 404 =====
	case errors.Is(err, service.ErrTableNotFound):
		return model.NewNotFoundError("table")
	case errors.Is(err, service.ErrRowNotFound):
		return model.NewNotFoundError("row")
	case errors.Is(err, service.ErrFieldNotFound):
		return model.NewNotFoundError("field")
	case errors.Is(err, service.ErrFileNotFound):
		return model.NewNotFoundError("file")
	case errors.Is(err, service.ErrNoContent):
		return model.NewNotFoundError("file content")
	case errors.Is(err, service.ErrLinkNotFound):
		return model.NewNotFoundError("link")

	// ===== Bad Request Errors → 400 =====
	case errors.Is(err, service.ErrNotAssociationField),
		errors.Is(err, service.ErrNotOptionField):
		return model.NewBadRequestError(err.Error())

	// ===== Conflict Errors → 409 =====
	case errors.Is(err, service.ErrConflict):
		return model.NewConflictError(err.Error())

	// ===== Size Errors → 413 =====
	case errors.Is(err, service.ErrContentTooLarge):
		p := model.NewPayloadTooLargeError(service.DefaultMaxContentBytes)
		p.Detail = err.Error()
		return p

	// ===== Storage Errors → 503 =====
	case errors.Is(err, database.ErrConnection):
		return model.NewServiceUnavailableError("database unavailable")
	}

	slog.Error("unhandled service error", slog.String("error", err.Error()))
	return model.NewInternalError("")
}

func fieldErrors(verr *xtable.ValidationError) []model.FieldError {
	out := make([]model.FieldError, 0, len(verr.Errors))
	for _, fe := range verr.Errors {
		out = append(out, model.FieldError{Field: fe.Member, Message: fe.Message})
	}
	return out
}
