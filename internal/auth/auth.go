// Package auth guards the dashboard API with a shared bearer token.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
	// OpenSearch leaves the read-only search routes public. Exports
	// still require the token.
	OpenSearch bool
}

// Access classifies a route.
type Access int

const (
	// Protected routes need the token whenever auth is enabled.
	Protected Access = iota
	// Search routes read the caller's own session and are public when
	// OpenSearch is set.
	Search
	// Public routes never need a token.
	Public
)

// routes maps exact paths to their access class. Anything else is
// Protected.
var routes = map[string]Access{
	"/":                      Public,
	"/index.html":            Public,
	"/app.js":                Public,
	"/styles.css":            Public,
	"/healthz":               Public,
	"/readyz":                Public,
	"/metrics":               Public,
	"/api/v1/options":        Public,
	"/api/v1/approaches":     Search,
	"/api/v1/approaches.csv": Search,
	"/api/v1/chart":          Search,
}

// Classify returns the access class of a request.
func Classify(r *http.Request) Access {
	a := routes[r.URL.Path]
	if a == Search && r.Method != http.MethodGet && r.Method != http.MethodHead {
		return Protected
	}
	return a
}

// required reports whether r must carry the token under cfg.
func (cfg Config) required(r *http.Request) bool {
	if !cfg.Enabled {
		return false
	}
	switch Classify(r) {
	case Public:
		return false
	case Search:
		return !cfg.OpenSearch
	default:
		return true
	}
}

// bearer extracts the token from an "Authorization: Bearer <token>" header.
func bearer(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// according to cfg.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.required(r) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearer(r)
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="closeapproach"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{
					"error":  "unauthorized",
					"detail": "a bearer token is required for this route",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
