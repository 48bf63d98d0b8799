package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	protected := Middleware(Config{Enabled: true, Token: "s3cret"})(ok)
	openSearch := Middleware(Config{Enabled: true, Token: "s3cret", OpenSearch: true})(ok)
	open := Middleware(Config{})(ok)

	tests := []struct {
		name    string
		handler http.Handler
		method  string
		path    string
		header  string
		want    int
	}{
		{"disabled", open, "POST", "/api/v1/export/s3", "", http.StatusNoContent},
		{"probe exempt", protected, "GET", "/readyz", "", http.StatusNoContent},
		{"options exempt", protected, "GET", "/api/v1/options", "", http.StatusNoContent},
		{"web root exempt", protected, "GET", "/", "", http.StatusNoContent},
		{"missing token", protected, "POST", "/api/v1/export/s3", "", http.StatusUnauthorized},
		{"wrong scheme", protected, "GET", "/api/v1/approaches", "Basic s3cret", http.StatusUnauthorized},
		{"wrong token", protected, "GET", "/api/v1/approaches", "Bearer nope", http.StatusUnauthorized},
		{"empty bearer", protected, "GET", "/api/v1/chart", "Bearer ", http.StatusUnauthorized},
		{"valid token", protected, "POST", "/api/v1/export/s3", "Bearer s3cret", http.StatusNoContent},
		{"lowercase scheme", protected, "GET", "/api/v1/chart", "bearer s3cret", http.StatusNoContent},
		{"unknown path protected", protected, "GET", "/api/v1/other", "", http.StatusUnauthorized},
		{"open search read", openSearch, "GET", "/api/v1/approaches", "", http.StatusNoContent},
		{"open search csv", openSearch, "GET", "/api/v1/approaches.csv", "", http.StatusNoContent},
		{"open search write", openSearch, "POST", "/api/v1/approaches", "", http.StatusUnauthorized},
		{"open search export", openSearch, "POST", "/api/v1/export/s3", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			tt.handler.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate challenge")
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		method, path string
		want         Access
	}{
		{"GET", "/healthz", Public},
		{"GET", "/api/v1/chart", Search},
		{"HEAD", "/api/v1/approaches", Search},
		{"DELETE", "/api/v1/approaches", Protected},
		{"POST", "/api/v1/export/s3", Protected},
	}
	for _, tt := range tests {
		if got := Classify(httptest.NewRequest(tt.method, tt.path, nil)); got != tt.want {
			t.Errorf("Classify(%s %s) = %d, want %d", tt.method, tt.path, got, tt.want)
		}
	}
}
