package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wellora/telehealth-booking/pkg/logging"
)

func TestHealthEndpoint(t *testing.T) {
	r := New(&Config{Logger: logging.Default()})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json content type, got %q", got)
	}
}

func TestMetricsEndpointMountedWhenConfigured(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r := New(&Config{Logger: logging.Default(), MetricsHandler: metricsHandler})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestUnconfiguredRoutesAre404(t *testing.T) {
	r := New(&Config{Logger: logging.Default()})

	for _, path := range []string{"/api/stripe/appointments", "/api/stripe/webhook", "/api/qualiphy/webhook"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected unmounted %s to 404, got %d", path, rr.Code)
		}
	}
}
