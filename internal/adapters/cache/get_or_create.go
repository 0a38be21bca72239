package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Amund211/uniresolve/internal/logging"
)

// Returns the cached value for key, calling create on a miss.
//
// Concurrent callers for the same key wait for the first one. Errors from
// create are not cached. Returns data, created, error.
func GetOrCreate[T any](ctx context.Context, cache Cache[T], key string, create func() (T, error)) (T, bool, error) {
	logger := logging.FromContext(ctx).With(slog.String("cacheKey", key))

	// Release a claimed entry we did not fill so other callers can try again
	claimed := false
	set := false
	defer func() {
		if claimed && !set {
			cache.delete(key)
		}
	}()

	for {
		result := cache.getOrClaim(key)

		if result.claimed {
			claimed = true

			logger.InfoContext(ctx, "Getting value", "cache", "miss")

			data, err := create()
			if err != nil {
				var empty T
				return empty, false, fmt.Errorf("failed to create cache entry: %w", err)
			}

			cache.set(key, data)
			set = true

			return data, true, nil
		}

		if result.valid {
			logger.InfoContext(ctx, "Getting value", "cache", "hit")
			return result.data, false, nil
		}

		logger.InfoContext(ctx, "Waiting for cache")
		cache.wait()
	}
}
