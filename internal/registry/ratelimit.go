package registry

import (
	"context"
	"time"
)

// defaultRateLimitWindow is used only when a caller passes a non-positive
// window.
const defaultRateLimitWindow = 60 * time.Second

// CheckRateLimit atomically increments userID's bucket for the given
// window (rounded up to whole seconds) and reports whether the
// post-increment count is still within max. The INCR+EXPIRE pair happens
// in a single Redis round trip so a crash between the two calls can never
// leave the key without a TTL.
func (r *Registry) CheckRateLimit(ctx context.Context, userID string, max int64, window time.Duration) (bool, error) {
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	windowSecs := int((window + time.Second - 1) / time.Second)
	count, err := r.rdb.IncrWithWindow(ctx, rateLimitKey(userID), windowSecs)
	if err != nil {
		return false, err
	}
	return count <= max, nil
}
