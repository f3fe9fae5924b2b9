package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	idempotencyHeader      = "Idempotency-Key"
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// reservationTTL bounds how long a crashed request can hold its key.
	reservationTTL = 2 * time.Minute
	// defaultMaxIdempotentBody caps the buffered body when the caller passes no limit.
	defaultMaxIdempotentBody int64 = 11 << 20
)

type routeMatcher func(string) bool

type idempotencyRule struct {
	method   string
	matcher  routeMatcher
	critical bool
}

var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, matcher: matchExact("/cart/items")},
	{method: http.MethodPost, matcher: matchExact("/stock/adjustment")},
	{method: http.MethodPost, matcher: matchExact("/stock/products")},
	{method: http.MethodPost, matcher: matchPrefixSuffix("/orders/", "/shipping")},
	// money and order state
	{method: http.MethodPost, matcher: matchExact("/checkout"), critical: true},
	{method: http.MethodPost, matcher: matchPrefixSuffix("/payments/", "/confirm"), critical: true},
	{method: http.MethodPost, matcher: matchPrefixSuffix("/payments/", "/slip"), critical: true},
	{method: http.MethodPut, matcher: matchPrefixSuffix("/orders/", "/status"), critical: true},
}

type replayState string

const (
	statePending  replayState = "pending"
	stateComplete replayState = "complete"
)

// replay is what redis holds under a key: first a reservation, then the response.
type replay struct {
	State       replayState `json:"state"`
	RequestHash string      `json:"request_hash"`
	Status      int         `json:"status,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

func (p replay) encode() (string, error) {
	raw, err := json.Marshal(p)
	return string(raw), err
}

func (p replay) writeTo(w http.ResponseWriter) {
	if p.ContentType != "" {
		w.Header().Set("Content-Type", p.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(p.Status)
	_, _ = w.Write(p.Body)
}

// Idempotency makes the listed mutating routes safe to retry. The first request
// for a key reserves it; the response is stored once the handler finishes and
// replayed for later requests with the same key and body. Server errors release
// the key so the caller can retry. criticalTTL applies to checkout, payment and
// order status routes; zero falls back to seven days. Bodies are buffered for
// hashing up to maxBody bytes and refused beyond it.
func Idempotency(store pkgredis.IdempotencyStore, criticalTTL time.Duration, maxBody int64, logg *logger.Logger) func(http.Handler) http.Handler {
	if criticalTTL <= 0 {
		criticalTTL = criticalIdempotencyTTL
	}
	if maxBody <= 0 {
		maxBody = defaultMaxIdempotentBody
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r), criticalTTL)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			idemKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if idemKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body exceeds the upload limit").WithDetails(map[string]any{"max_bytes": maxBody}))
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashBody(body)
			key := store.IdempotencyKey(idempotencyScope(r), idemKey)

			reservation, err := replay{State: statePending, RequestHash: hash}.encode()
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency reservation"))
				return
			}
			won, err := store.SetNX(ctx, key, reservation, reservationTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !won {
				replayExisting(w, r, store, key, hash, logg)
				return
			}

			rec := &captureRecorder{statusRecorder: statusRecorder{ResponseWriter: w}}
			completed := false
			defer func() {
				if !completed {
					release(r, store, key, logg)
				}
			}()
			next.ServeHTTP(rec, r)

			if rec.Status() >= http.StatusInternalServerError {
				return
			}
			completed = true

			stored, err := replay{
				State:       stateComplete,
				RequestHash: hash,
				Status:      rec.Status(),
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			}.encode()
			if err == nil {
				err = store.Set(ctx, key, stored, ttl)
			}
			if err != nil && logg != nil {
				logg.Error(logg.WithField(ctx, "idempotency_key", idemKey), "idempotency.persist_failed", err)
			}
		})
	}
}

func replayExisting(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, key, hash string, logg *logger.Logger) {
	ctx := r.Context()
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// the holder released or expired between our SetNX and Get
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is being retried, try again"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var existing replay
	if err := json.Unmarshal([]byte(raw), &existing); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case existing.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case existing.State != stateComplete:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
	default:
		existing.writeTo(w)
	}
}

func release(r *http.Request, store pkgredis.IdempotencyStore, key string, logg *logger.Logger) {
	if err := store.Del(r.Context(), key); err != nil && logg != nil {
		logg.Error(r.Context(), "idempotency.release_failed", err)
	}
}

// idempotencyScope keeps keys from different customers, methods and paths apart.
func idempotencyScope(r *http.Request) string {
	customer := "anonymous"
	if customerID, ok := CustomerIDFromContext(r.Context()); ok {
		customer = customerID.String()
	}
	return strings.Join([]string{customer, r.Method, r.URL.Path}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string, criticalTTL time.Duration) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	for _, rule := range idempotencyRules {
		if rule.method != method || !rule.matcher(pattern) {
			continue
		}
		if rule.critical {
			return criticalTTL, true
		}
		return defaultIdempotencyTTL, true
	}
	return 0, false
}

func matchExact(path string) routeMatcher {
	return func(pattern string) bool {
		return pattern == path
	}
}

func matchPrefixSuffix(prefix, suffix string) routeMatcher {
	return func(pattern string) bool {
		return strings.HasPrefix(pattern, prefix) && strings.HasSuffix(pattern, suffix)
	}
}

// captureRecorder tees the response body so it can be stored for replay.
type captureRecorder struct {
	statusRecorder
	body bytes.Buffer
}

func (c *captureRecorder) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.statusRecorder.Write(b)
}
