package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestCorrelationID(t *testing.T) {
	svc := new(MockService)
	svc.On("ListActiveSessions", mock.Anything).Return(nil, nil)
	h := newTestRouter(svc, RouterConfig{})

	t.Run("Echoes caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
		req.Header.Set(CorrelationIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", rec.Header().Get(CorrelationIDHeader))
	})

	t.Run("Generates one when absent", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/sessions", "")
		assert.NotEmpty(t, rec.Header().Get(CorrelationIDHeader))
	})
}

func TestRecovery(t *testing.T) {
	h := Recovery(false)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"errorCode":"UNHANDLED_ERROR","error":"internal server error"}`, rec.Body.String())
}

func TestRateLimiting(t *testing.T) {
	svc := new(MockService)
	svc.On("ListActiveSessions", mock.Anything).Return(nil, nil)
	h := newTestRouter(svc, RouterConfig{RateLimitRequests: 10, RateLimitWindow: time.Minute})

	server := httptest.NewServer(h)
	defer server.Close()
	client := server.Client()

	get := func() int {
		req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/sessions", nil)
		res, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer res.Body.Close()
		return res.StatusCode
	}

	for i := 0; i < 10; i++ {
		if code := get(); code == http.StatusTooManyRequests {
			t.Fatalf("request %d got 429 too early", i)
		}
	}
	assert.Equal(t, http.StatusTooManyRequests, get())
}

func TestWebSocketMount(t *testing.T) {
	ws := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := NewRouter(NewSessionHandler(new(MockService), false), ws, RouterConfig{RateLimitRequests: 1})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusTeapot, do(t, h, http.MethodGet, "/ws", "").Code, "ws is outside the rate limit")
	}
}
