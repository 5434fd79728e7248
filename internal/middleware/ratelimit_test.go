package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTransportLimitHandler(t *testing.T, rate string) http.Handler {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mw, err := TransportRateLimit(client, rate)
	if err != nil {
		t.Fatalf("create middleware: %v", err)
	}

	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestTransportRateLimit_AllowsUnderLimit(t *testing.T) {
	t.Parallel()

	handler := newTransportLimitHandler(t, "5-S")

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/intent", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i+1, rec.Code)
		}
	}
}

func TestTransportRateLimit_BlocksOverLimit(t *testing.T) {
	t.Parallel()

	handler := newTransportLimitHandler(t, "2-M")

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/intent", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/intent", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rec.Code)
	}
}

func TestTransportRateLimit_KeysByClientIP(t *testing.T) {
	t.Parallel()

	handler := newTransportLimitHandler(t, "1-M")

	first := httptest.NewRequest(http.MethodPost, "/v1/intent", nil)
	first.RemoteAddr = "10.0.0.3:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 for first client, got %d", rec.Code)
	}

	other := httptest.NewRequest(http.MethodPost, "/v1/intent", nil)
	other.RemoteAddr = "10.0.0.4:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("other clients must not share the limit, got %d", rec.Code)
	}
}

func TestTransportRateLimit_InvalidRate(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if _, err := TransportRateLimit(client, "bogus"); err == nil {
		t.Error("expected an error for an unparseable rate")
	}
}
