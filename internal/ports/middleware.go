package ports

import (
	"log/slog"
	"net/http"

	"github.com/Amund211/uniresolve/internal/logging"
	"github.com/Amund211/uniresolve/internal/ratelimiting"
	"github.com/Amund211/uniresolve/internal/reporting"
)

func NewRateLimitMiddleware(rateLimiter ratelimiting.RequestRateLimiter, onLimitExceeded http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rateLimiter.Consume(r) {
				onLimitExceeded(w, r)
				return
			}

			next(w, r)
		}
	}
}

func ComposeMiddlewares(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	if len(middlewares) == 0 {
		return func(h http.HandlerFunc) http.HandlerFunc {
			return h
		}
	}
	if len(middlewares) == 1 {
		return middlewares[0]
	}
	first := middlewares[0]
	rest := ComposeMiddlewares(middlewares[1:]...)
	return func(h http.HandlerFunc) http.HandlerFunc {
		return first(rest(h))
	}
}

type rateLimits struct {
	ipRefillPerSecond     ratelimiting.RefillPerSecond
	ipBurstSize           ratelimiting.BurstSize
	userIDRefillPerSecond ratelimiting.RefillPerSecond
	userIDBurstSize       ratelimiting.BurstSize
}

// The middleware stack shared by all endpoints
func buildEndpointMiddleware(
	port string,
	limits rateLimits,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) func(http.HandlerFunc) http.HandlerFunc {
	// The limiters live as long as the process
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(limits.ipRefillPerSecond, limits.ipBurstSize)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(ipLimiter, ratelimiting.IPKeyFunc)

	// NOTE: Rate limiting based on user controlled value
	userIDLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(limits.userIDRefillPerSecond, limits.userIDBurstSize)
	userIDRateLimiter := ratelimiting.NewRequestBasedRateLimiter(userIDLimiter, ratelimiting.UserIDKeyFunc)

	makeOnLimitExceeded := func(rateLimiter ratelimiting.RequestRateLimiter) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			logging.FromContext(r.Context()).InfoContext(r.Context(), "Rate limit exceeded", slog.String("key", rateLimiter.KeyFor(r)))
			writeErrorResponse(w, http.StatusTooManyRequests, "rate limit exceeded")
		}
	}

	return ComposeMiddlewares(
		buildMetricsMiddleware(port),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware(port),
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(ipRateLimiter, makeOnLimitExceeded(ipRateLimiter)),
		NewRateLimitMiddleware(userIDRateLimiter, makeOnLimitExceeded(userIDRateLimiter)),
	)
}
