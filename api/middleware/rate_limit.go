package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/angelmondragon/mealshare-backend/api/responses"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
)

// windowLimiter counts hits on scope within a fixed window and reports
// whether this one is still within limit.
type windowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// UserRateLimit caps authenticated traffic per user. It must run after Auth.
func UserRateLimit(limiter windowLimiter, limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 || window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromContext(r.Context())
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !allowHit(w, r, logg, limiter, "user:"+userID, limit, window, "api.rate_limit.blocked") {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allowHit counts one hit against scope. When the hit is refused it writes
// the 429 (or the dependency error) and returns false.
func allowHit(w http.ResponseWriter, r *http.Request, logg *logger.Logger, limiter windowLimiter, scope string, limit int, window time.Duration, event string) bool {
	ctx := r.Context()
	allowed, count, err := limiter.FixedWindowAllow(ctx, scope, int64(limit), window)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
		return false
	}
	if allowed {
		return true
	}
	logg.Warn(logg.WithFields(ctx, map[string]any{
		"scope":          scope,
		"attempts":       count,
		"limit":          limit,
		"window_seconds": int(window.Seconds()),
	}), event)
	w.Header().Set("Retry-After", strconv.Itoa(max(1, int(window.Seconds()))))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
	return false
}
