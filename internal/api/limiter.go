package api

import (
	"sync"
)

// fetchLimiter bounds concurrent provider searches per client IP and
// globally.
type fetchLimiter struct {
	mu       sync.Mutex
	inflight map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newFetchLimiter(maxPerIP, maxTotal int) *fetchLimiter {
	return &fetchLimiter{
		inflight: make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// acquire reserves a search slot for ip. It returns false when the IP or
// global limit has been reached.
func (l *fetchLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.maxTotal {
		return false
	}
	if l.inflight[ip] >= l.maxPerIP {
		return false
	}

	l.inflight[ip]++
	l.total++
	return true
}

// release frees a slot taken by acquire.
func (l *fetchLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.inflight[ip]--
	l.total--
	if l.inflight[ip] <= 0 {
		delete(l.inflight, ip)
	}
}

// count returns the number of searches in flight for ip.
func (l *fetchLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inflight[ip]
}
