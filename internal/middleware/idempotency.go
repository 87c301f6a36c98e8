package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/cache"
)

const (
	idempotencyKeyPrefix   = "idempotency:"
	defaultIdempotencyBody = 1 << 20
)

// IdempotencyStore remembers the responses of keyed requests. Completed
// responses live in the shared cache; requests still running are tracked
// locally so concurrent retries wait instead of executing twice.
type IdempotencyStore struct {
	cache   cache.Cache
	ttl     time.Duration
	maxBody int64

	mu       sync.Mutex
	inFlight map[string]chan struct{}
}

// storedResponse is the cache encoding of a replayable response.
type storedResponse struct {
	Status  int         `json:"status"`
	Headers http.Header `json:"headers"`
	Body    []byte      `json:"body"`
}

// IdempotencyConfig holds configuration for idempotency middleware
type IdempotencyConfig struct {
	TTL time.Duration // How long to keep idempotency results (default 24h)
	// MaxBodyBytes caps request and response bodies the store handles
	// (default 1 MiB). Larger requests pass through without replay.
	MaxBodyBytes int64
}

// NewIdempotencyStore creates a new idempotency store over c
func NewIdempotencyStore(c cache.Cache, cfg IdempotencyConfig) *IdempotencyStore {
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultIdempotencyBody
	}
	return &IdempotencyStore{
		cache:    c,
		ttl:      cfg.TTL,
		maxBody:  cfg.MaxBodyBytes,
		inFlight: make(map[string]chan struct{}),
	}
}

// generateKey creates a unique key from user ID, idempotency key, and request fingerprint
func generateKey(userID, idempotencyKey, method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(idempotencyKey))
	h.Write([]byte{0})
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(body)
	return idempotencyKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// begin claims key, or returns the channel of the request already holding it.
func (s *IdempotencyStore) begin(key string) (wait chan struct{}, owner bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.inFlight[key]; ok {
		return ch, false
	}
	ch := make(chan struct{})
	s.inFlight[key] = ch
	return ch, true
}

func (s *IdempotencyStore) finish(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.inFlight[key]; ok {
		close(ch)
		delete(s.inFlight, key)
	}
}

func (s *IdempotencyStore) lookup(ctx context.Context, key string) (*storedResponse, bool) {
	var resp storedResponse
	err := cache.GetJSON(ctx, s.cache, key, &resp)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("idempotency lookup failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	return &resp, true
}

func (s *IdempotencyStore) save(ctx context.Context, key string, resp storedResponse) {
	if err := cache.SetJSON(ctx, s.cache, key, resp, s.ttl); err != nil {
		slog.Warn("idempotency save failed", slog.String("error", err.Error()))
	}
}

func replay(w http.ResponseWriter, resp *storedResponse) {
	for k, v := range resp.Headers {
		for _, val := range v {
			w.Header().Add(k, val)
		}
	}
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

// idempotencyResponseWriter captures the response for caching, up to limit
// bytes. Longer responses are sent but not captured.
type idempotencyResponseWriter struct {
	http.ResponseWriter
	status   int
	body     bytes.Buffer
	limit    int64
	overflow bool
}

func (w *idempotencyResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	if !w.overflow {
		if int64(w.body.Len()+len(b)) > w.limit {
			w.overflow = true
			w.body.Reset()
		} else {
			w.body.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response of a POST, PUT or PATCH carrying an
// Idempotency-Key that was already answered successfully.
func Idempotency(store *IdempotencyStore) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := r.Header.Get("Idempotency-Key")
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID := GetUserID(r.Context())
			if userID == "" {
				userID = clientAddr(r)
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, store.maxBody+1))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if int64(len(body)) > store.maxBody {
				// too large to fingerprint; hand the handler the whole stream
				r.Body = readCloser{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := generateKey(userID, idempotencyKey, r.Method, r.URL.Path, body)

			for {
				if resp, ok := store.lookup(r.Context(), key); ok {
					replay(w, resp)
					return
				}
				wait, owner := store.begin(key)
				if owner {
					break
				}
				select {
				case <-wait:
				case <-r.Context().Done():
					return
				}
			}
			defer store.finish(key)

			irw := &idempotencyResponseWriter{ResponseWriter: w, status: http.StatusOK, limit: store.maxBody}
			next.ServeHTTP(irw, r)

			// failures are not remembered so the client can retry them
			if irw.status >= 200 && irw.status < 300 && !irw.overflow {
				store.save(r.Context(), key, storedResponse{
					Status:  irw.status,
					Headers: irw.Header().Clone(),
					Body:    irw.body.Bytes(),
				})
			}
		})
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}
