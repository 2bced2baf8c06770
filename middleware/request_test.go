package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordedRequest struct {
	method, route string
	status        int
}

type requestRecorder struct {
	mu   sync.Mutex
	seen []recordedRequest
}

func (r *requestRecorder) ObserveRequest(method, route string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recordedRequest{method, route, status})
}

func TestRequestID(t *testing.T) {
	var got string
	h := chimw.RequestID(RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestIDFromContext(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "req-42", got)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := &requestRecorder{}

	r := chi.NewRouter()
	r.Use(RequestLogger(zap.New(core), rec))
	r.Get("/api/v1/audit/{table}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fine"))
	})

	for _, path := range []string{"/api/v1/audit/patient", "/ok"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, rec.seen, 2)
	assert.Equal(t, recordedRequest{http.MethodGet, "/api/v1/audit/{table}", http.StatusTeapot}, rec.seen[0])
	assert.Equal(t, recordedRequest{http.MethodGet, "/ok", http.StatusOK}, rec.seen[1])

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "/api/v1/audit/patient", entries[0].ContextMap()["path"])
}
