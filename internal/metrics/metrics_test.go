package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/app.js", "/app.js"},
		{"/api/v1/options", "/api/v1/options"},
		{"/api/v1/approaches", "/api/v1/approaches"},
		{"/api/v1/approaches.csv", "/api/v1/approaches.csv"},
		{"/api/v1/chart", "/api/v1/chart"},
		{"/api/v1/export/s3", "/api/v1/export/s3"},

		// Unknown/bot paths collapse to "other".
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/api/v2/something", "other"},
		{"/api/v1/approaches/2025-AB", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that 100 unknown paths produce exactly one
// distinct path label.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		label := normalizeRoute("/probe/" + string(rune('a'+i%26)) + string(rune('0'+i/26)))
		seen[label] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for unknown paths, got %d: %v", len(seen), seen)
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chart", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTeapot)
	}

	ObserveFetch("ok", 120*time.Millisecond)
	ObserveRows(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`closeapproach_http_requests_total{code="418",method="GET",path="/api/v1/chart"}`,
		`closeapproach_provider_fetches_total{outcome="ok"}`,
		"closeapproach_search_rows_count",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
