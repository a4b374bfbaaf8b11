package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"gitlab.connectwisedev.com/storefront-service/pkg/apperr"
)

const (
	limiterIdle       = 30 * time.Minute
	limiterPruneEvery = 5 * time.Minute
)

type ipLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

// limiterSet holds one token bucket per client IP. Idle buckets are pruned
// lazily on access.
type limiterSet struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	limiters  map[string]*ipLimiter
	lastPrune time.Time
	now       func() time.Time
}

func newLimiterSet(rps float64, burst int) *limiterSet {
	return &limiterSet{
		rps:       rate.Limit(rps),
		burst:     burst,
		limiters:  map[string]*ipLimiter{},
		lastPrune: time.Now(),
		now:       time.Now,
	}
}

func (s *limiterSet) allow(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastPrune) > limiterPruneEvery {
		for k, l := range s.limiters {
			if now.Sub(l.last) > limiterIdle {
				delete(s.limiters, k)
			}
		}
		s.lastPrune = now
	}

	l, ok := s.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.limiters[ip] = l
	}
	l.last = now
	return l.limiter.AllowN(now, 1)
}

func remoteIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimit answers 429 once a client exceeds its bucket. A non-positive
// rps disables limiting.
func rateLimit(rps float64, burst int, fail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	set := newLimiterSet(rps, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !set.allow(remoteIP(r)) {
				w.Header().Set("Retry-After", "1")
				fail(w, r, errRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var errRateLimited = apperr.New(apperr.RateLimited, "Rate limit exceeded")
