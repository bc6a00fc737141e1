// ABOUTME: Per-user token bucket rate limiting for API requests
// ABOUTME: Keeps a size-bounded set of limiters keyed by user id; a zero rate disables limiting

package gateway

import (
	"container/list"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/2389/convai-gateway/internal/auth"
)

// maxLimiterKeys bounds how many callers are tracked at once.
const maxLimiterKeys = 10000

type limiterEntry struct {
	limiter *rate.Limiter
	element *list.Element
}

// rateLimiter hands out a token bucket per key. The least recently used
// key is evicted once maxKeys is reached.
type rateLimiter struct {
	mu      sync.Mutex
	limits  map[string]*limiterEntry
	order   *list.List // keys, least recently used at front
	rps     rate.Limit
	burst   int
	maxKeys int
}

// newRateLimiter returns nil when rps is not positive.
func newRateLimiter(rps float64, burst int) *rateLimiter {
	if rps <= 0 {
		return nil
	}
	return &rateLimiter{
		limits:  make(map[string]*limiterEntry),
		order:   list.New(),
		rps:     rate.Limit(rps),
		burst:   burst,
		maxKeys: maxLimiterKeys,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if entry, ok := rl.limits[key]; ok {
		rl.order.MoveToBack(entry.element)
		return entry.limiter
	}

	if len(rl.limits) >= rl.maxKeys {
		if front := rl.order.Front(); front != nil {
			oldest, _ := front.Value.(string)
			rl.order.Remove(front)
			delete(rl.limits, oldest)
		}
	}

	entry := &limiterEntry{
		limiter: rate.NewLimiter(rl.rps, rl.burst),
		element: rl.order.PushBack(key),
	}
	rl.limits[key] = entry
	return entry.limiter
}

// Allow checks if a request is allowed for the given key.
func (rl *rateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// size reports how many keys are tracked.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limits)
}

// middleware rejects requests over the caller's rate with 429.
// Must run after the identity resolver.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	if rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if id := auth.FromContext(r.Context()); id != nil {
			key = id.UserID
		}
		if !rl.Allow(key) {
			w.Header().Set("Retry-After", "1")
			sendJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
