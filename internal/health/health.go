package health

import (
	"net/http"
	"sync/atomic"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Checker tracks readiness: set after startup, cleared when shutdown begins.
type Checker struct {
	ready atomic.Bool
}

// SetReady marks the service ready or not ready.
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// Ready reports the current state. A nil Checker is always ready.
func (c *Checker) Ready() bool {
	return c == nil || c.ready.Load()
}

// Readyz returns 200 "ready\n" when the service is ready, 503 otherwise.
func (c *Checker) Readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !c.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}
