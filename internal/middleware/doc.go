// Package middleware provides HTTP middleware for the CafeMarche API.
//
// # Available Middleware
//
//   - RequestID, Logger, Recovery: request tracing, structured logs and panic recovery
//   - CORS, Compress: browser access and gzip bodies
//   - Identity: resolves the acting principal from X-User-ID and X-Intention
//   - RateLimit: token buckets per user, or per client address when anonymous
//   - Idempotency: replays successful writes that carry an Idempotency-Key
//   - Metrics: Prometheus request counts and latency per route pattern
//
// # Ordering
//
// Identity must run before RateLimit and Idempotency so both can key on the
// user. Metrics must wrap the ServeMux directly:
//
//	handler := middleware.Chain(mux,
//	    middleware.RequestID,
//	    middleware.Logger,
//	    middleware.Recovery,
//	    middleware.CORS(origins),
//	    middleware.Identity(principals),
//	    middleware.RateLimit(limiter),
//	    middleware.Idempotency(idempotency),
//	    middleware.Compress,
//	    middleware.Metrics(m),
//	)
//
// # Context Values
//
//   - GetRequestID(ctx): unique request identifier
//   - GetUserID(ctx): qualified user record id, empty when anonymous
//   - GetPrincipal(ctx): the resolved principal, anonymous by default
package middleware
