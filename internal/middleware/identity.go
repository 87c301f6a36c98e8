package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/service"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

const (
	// UserIDHeader carries the authenticated user id set by the fronting proxy.
	UserIDHeader = "X-User-ID"
	// IntentionHeader selects the public, user or admin view.
	IntentionHeader = "X-Intention"
)

// PrincipalResolver defines the interface for resolving principals
type PrincipalResolver interface {
	Resolve(ctx context.Context, userID string, intention xtable.Intention) (*xtable.Principal, error)
}

// Identity resolves the acting principal from the X-User-ID header and stores
// it in the request context. Requests without the header act as the public role.
func Identity(resolver PrincipalResolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if userID != "" {
				qualified, ok := xtable.QualifyID("user", userID)
				if !ok {
					model.NewUnknownUserError("malformed user id").WriteJSON(w)
					return
				}
				userID = qualified
			}
			intention := xtable.ParseIntention(r.Header.Get(IntentionHeader))

			p, err := resolver.Resolve(r.Context(), userID, intention)
			if err != nil {
				if errors.Is(err, service.ErrUnknownUser) {
					model.NewUnknownUserError("unknown user").WriteJSON(w)
					return
				}
				slog.Error("failed to resolve principal",
					slog.String("user_id", userID),
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("error", err.Error()))
				model.NewServiceUnavailableError("identity lookup failed").WriteJSON(w)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, p)
			if userID != "" {
				ctx = context.WithValue(ctx, UserIDKey, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal returns the principal stored by Identity, or an anonymous one.
func GetPrincipal(ctx context.Context) *xtable.Principal {
	if p, ok := ctx.Value(PrincipalKey).(*xtable.Principal); ok && p != nil {
		return p
	}
	return xtable.Anonymous()
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *xtable.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// GetUserID extracts the user ID from context
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}
