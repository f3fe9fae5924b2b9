package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	str, _ := value.(string)
	f.data[key] = str
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	return req.WithContext(ctx)
}

func TestRouteTTLSelection(t *testing.T) {
	critical := 48 * time.Hour
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"checkout", http.MethodPost, "/checkout", critical, true},
		{"payment confirm", http.MethodPost, "/payments/{paymentId}/confirm", critical, true},
		{"slip upload", http.MethodPost, "/payments/{paymentId}/slip", critical, true},
		{"order status", http.MethodPut, "/orders/{orderId}/status", critical, true},
		{"stock adjustment", http.MethodPost, "/stock/adjustment", defaultIdempotencyTTL, true},
		{"product receive", http.MethodPost, "/stock/products", defaultIdempotencyTTL, true},
		{"shipping create", http.MethodPost, "/orders/{orderId}/shipping", defaultIdempotencyTTL, true},
		{"order read", http.MethodGet, "/orders/{orderId}", 0, false},
		{"cart item delete", http.MethodDelete, "/cart/items/{itemId}", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern, critical)
		assert.Equal(t, tt.ok, ok, tt.name)
		if ok {
			assert.Equal(t, tt.want, ttl, tt.name)
		}
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	mw := Idempotency(newFakeStore(), 0, 0, nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, "/checkout", "/checkout", strings.NewReader(`{"foo":"bar"}`))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, handlerCalled, "handler should not run without idempotency key")
}

func TestIdempotencyMiddlewareWithoutStorePassesThrough(t *testing.T) {
	mw := Idempotency(nil, 0, 0, nil)
	req := requestWithPattern(http.MethodPost, "/checkout", "/checkout", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, 0, 0, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"orderId":"o-1"}`))
	})

	customerID := uuid.New()
	newReq := func() *http.Request {
		req := requestWithPattern(http.MethodPost, "/checkout", "/checkout", strings.NewReader(`{"shippingInfo":{}}`))
		req.Header.Set("Idempotency-Key", "abc")
		return req.WithContext(WithIdentity(req.Context(), customerID, enums.RoleCustomer))
	}

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, newReq())
	require.Equal(t, http.StatusCreated, resp.Code)

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, newReq())
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"orderId":"o-1"}`, strings.TrimSpace(rec.Body.String()))
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, calls)

	for _, ttl := range store.ttls {
		assert.Equal(t, criticalIdempotencyTTL, ttl)
	}
}

func TestIdempotencyMiddlewareScopesByCustomer(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, 0, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, "/checkout", "/checkout", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "same")
		req = req.WithContext(WithIdentity(req.Context(), uuid.New(), enums.RoleCustomer))
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, 2, calls)
}

func TestIdempotencyMiddlewareSkipsServerErrors(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, 0, 0, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, "/checkout", "/checkout", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "retry")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	mw := Idempotency(newFakeStore(), 0, 0, nil)

	req := requestWithPattern(http.MethodPost, "/stock/adjustment", "/stock/adjustment", strings.NewReader(`{"quantity":1}`))
	req.Header.Set("Idempotency-Key", "xyz")
	mw(okHandler()).ServeHTTP(httptest.NewRecorder(), req)

	replay := requestWithPattern(http.MethodPost, "/stock/adjustment", "/stock/adjustment", strings.NewReader(`{"quantity":2}`))
	replay.Header.Set("Idempotency-Key", "xyz")
	resp := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(resp, replay)

	require.Equal(t, http.StatusConflict, resp.Code)
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeIdempotency), payload.Error.Code)
}

func TestIdempotencyMiddlewareRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, 0, 0, nil)

	var inner *httptest.ResponseRecorder
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// a duplicate arrives while the first request still holds the key
		dup := requestWithPattern(http.MethodPost, "/checkout", "/checkout", strings.NewReader(`{}`))
		dup.Header.Set("Idempotency-Key", "busy")
		inner = httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(inner, dup)
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, "/checkout", "/checkout", strings.NewReader(`{}`))
	req.Header.Set("Idempotency-Key", "busy")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusCreated, resp.Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
	assert.Contains(t, inner.Body.String(), "in progress")
}

func TestIdempotencyMiddlewareReleasesKeyOnPanic(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, 0, 0, nil)
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	req := requestWithPattern(http.MethodPost, "/checkout", "/checkout", strings.NewReader(`{}`))
	req.Header.Set("Idempotency-Key", "panics")
	assert.Panics(t, func() { mw(handler).ServeHTTP(httptest.NewRecorder(), req) })
	assert.Empty(t, store.data)
}

func TestIdempotencyMiddlewareRefusesOversizedBody(t *testing.T) {
	store := newFakeStore()
	const limit = 1 << 10
	mw := Idempotency(store, 0, limit, nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	slip := strings.Repeat("x", 4*limit)
	req := requestWithPattern(http.MethodPost, "/payments/p-1/slip", "/payments/{paymentId}/slip", strings.NewReader(slip))
	req.Header.Set("Idempotency-Key", "slip-1")
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, handlerCalled, "oversized upload must not reach the handler")
	assert.Empty(t, store.data, "no key is reserved for a refused body")

	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeValidation), payload.Error.Code)
	assert.EqualValues(t, limit, payload.Error.Details["max_bytes"])

	// a body within the limit still goes through under a fresh key
	ok := requestWithPattern(http.MethodPost, "/payments/p-1/slip", "/payments/{paymentId}/slip", strings.NewReader(slip[:limit]))
	ok.Header.Set("Idempotency-Key", "slip-2")
	resp = httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, ok)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.True(t, handlerCalled)
}
