package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/benchfab/circuitstock/pkg/logger"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

func newIdempotencyRouter(store recordStore, hits *int) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	r := chi.NewRouter()
	r.Use(Idempotency(store, logg))
	r.Post("/api/v1/builds/{id}/clear", func(w http.ResponseWriter, _ *http.Request) {
		*hits++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"data":{"status":"scheduled"}}`))
	})
	return r
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	hits := 0
	router := newIdempotencyRouter(newMemoryStore(), &hits)

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/builds/b1/clear", strings.NewReader("{}"))
	req.Header.Set("Idempotency-Key", "key-1")
	router.ServeHTTP(first, req)
	if first.Code != http.StatusAccepted {
		t.Fatalf("first call status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/builds/b1/clear", strings.NewReader("{}"))
	req.Header.Set("Idempotency-Key", "key-1")
	router.ServeHTTP(second, req)

	if hits != 1 {
		t.Fatalf("handler ran %d times, want 1", hits)
	}
	if second.Code != http.StatusAccepted || second.Body.String() != first.Body.String() {
		t.Fatalf("replay mismatch: %d %q", second.Code, second.Body.String())
	}
}

// Mounted like the production router: the middleware sits on the /api/v1
// group and runs before the inner route is resolved.
func TestIdempotencyReplaysUnderNestedRouter(t *testing.T) {
	hits := 0
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Idempotency(newMemoryStore(), logg))
		r.Route("/builds/{id}", func(r chi.Router) {
			r.Post("/clear", func(w http.ResponseWriter, _ *http.Request) {
				hits++
				w.WriteHeader(http.StatusAccepted)
				w.Write([]byte(`{"data":{"status":"scheduled"}}`))
			})
		})
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/builds/b1/clear", strings.NewReader("{}"))
		req.Header.Set("Idempotency-Key", "key-1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusAccepted {
			t.Fatalf("call %d status = %d", i, w.Code)
		}
	}
	if hits != 1 {
		t.Fatalf("handler ran %d times, want 1", hits)
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	hits := 0
	router := newIdempotencyRouter(newMemoryStore(), &hits)

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/builds/b1/clear", strings.NewReader(`{"a":1}`))
	req.Header.Set("Idempotency-Key", "key-1")
	router.ServeHTTP(first, req)

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/builds/b1/clear", strings.NewReader(`{"a":2}`))
	req.Header.Set("Idempotency-Key", "key-1")
	router.ServeHTTP(second, req)

	if second.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for body mismatch, got %d", second.Code)
	}
	if hits != 1 {
		t.Fatalf("handler ran %d times, want 1", hits)
	}
}

func TestIdempotencyPassesThroughWithoutKey(t *testing.T) {
	hits := 0
	router := newIdempotencyRouter(newMemoryStore(), &hits)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/builds/b1/clear", strings.NewReader("{}"))
		router.ServeHTTP(w, req)
		if w.Code != http.StatusAccepted {
			t.Fatalf("call %d status = %d", i, w.Code)
		}
	}
	if hits != 2 {
		t.Fatalf("handler ran %d times, want 2", hits)
	}
}
