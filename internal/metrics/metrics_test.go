package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.CollectAndCount(HTTPLatencySeconds)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("unexpected status %d", rr.Code)
	}

	if got := testutil.CollectAndCount(HTTPLatencySeconds); got != before+1 {
		t.Fatalf("expected one new series, got %d (before %d)", got, before)
	}
	// Observing the same labels again must not create a new series.
	HTTPLatencySeconds.WithLabelValues("/items/{id}", http.MethodGet, "418").Observe(0.1)
	if got := testutil.CollectAndCount(HTTPLatencySeconds); got != before+1 {
		t.Fatalf("route pattern label was not used")
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	Register()
	Register()
}
