package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPerIP_disabled(t *testing.T) {
	if PerIP(0, time.Minute) != nil {
		t.Error("limit 0 should disable limiting")
	}
	if PerIP(-1, time.Minute) != nil {
		t.Error("negative limit should disable limiting")
	}
}

func TestPerIP_limits_each_client(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := PerIP(1, time.Minute)(ok)

	do := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/proxy/news", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("10.0.0.1:5000"); rec.Code != http.StatusNoContent {
		t.Fatalf("first request: %d", rec.Code)
	}
	rec := do("10.0.0.1:5001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request from same IP: %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	if rec := do("10.0.0.2:5000"); rec.Code != http.StatusNoContent {
		t.Errorf("other client limited: %d", rec.Code)
	}
}
