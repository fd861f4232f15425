package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/yourhelpa/helpa-server-go/internal/audit"
	apperrors "github.com/yourhelpa/helpa-server-go/internal/errors"
	"github.com/yourhelpa/helpa-server-go/internal/httputil"
	redisclient "github.com/yourhelpa/helpa-server-go/internal/redis"
)

// IPRateLimitMiddleware limits requests per client address within one scope.
type IPRateLimitMiddleware struct {
	limiter Limiter
	limit   int
	window  time.Duration
	scope   string
}

func NewIPRateLimitMiddleware(limiter Limiter, limit int, window time.Duration, scope string) *IPRateLimitMiddleware {
	return &IPRateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
		window:  window,
		scope:   scope,
	}
}

func (m *IPRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := audit.ClientIP(r)
		key := redisclient.RateLimitKey(m.scope, ip)

		allowed, remaining, resetAt := m.limiter.Allow(r.Context(), key, m.limit, m.window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Source:  m.scope,
				Details: map[string]interface{}{"limit": m.limit},
			})
			secondsLeft := int(time.Until(resetAt).Seconds()) + 1
			if secondsLeft < 1 {
				secondsLeft = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secondsLeft))
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
