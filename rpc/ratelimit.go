package rpc

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const visitorIdleTTL = 5 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per request source. A non-positive
// rate disables limiting.
type rateLimiter struct {
	mu        sync.Mutex
	perSecond rate.Limit
	burst     int
	visitors  map[string]*visitor
	now       func() time.Time
}

func newRateLimiter(requestsPerMinute float64, burst int) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiter{
		perSecond: rate.Limit(requestsPerMinute / 60.0),
		burst:     burst,
		visitors:  make(map[string]*visitor),
		now:       time.Now,
	}
}

func (l *rateLimiter) allow(source string) bool {
	if l == nil || l.perSecond <= 0 {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorIdleTTL {
			delete(l.visitors, id)
		}
	}
	v, ok := l.visitors[source]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.visitors[source] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
