// Package budget handles outbound RPC rate limiting.
//
// Public endpoints throttle aggressively; Throttle keeps the dispatcher under
// a configured attempts-per-second budget shared by every endpoint.
package budget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrWaitAborted is returned when ctx ends before an attempt is allowed.
var ErrWaitAborted = errors.New("throttle wait aborted")

// UsageStats holds throttle usage statistics.
type UsageStats struct {
	TotalCalls     int           `json:"total_calls"`
	ThrottledCalls int           `json:"throttled_calls"`
	TotalWait      time.Duration `json:"total_wait"`
	Limit          float64       `json:"limit"`
	Burst          int           `json:"burst"`
}

// Throttle is a token bucket over outbound attempts.
// A nil *Throttle never blocks.
type Throttle struct {
	limiter *rate.Limiter

	mu    sync.Mutex
	usage UsageStats
}

// NewThrottle returns a throttle allowing perSecond attempts with the given
// burst. perSecond <= 0 disables throttling and returns nil.
func NewThrottle(perSecond float64, burst int) *Throttle {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		usage: UsageStats{
			Limit: perSecond,
			Burst: burst,
		},
	}
}

// Wait blocks until an attempt is allowed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}

	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrWaitAborted, err)
	}
	waited := time.Since(start)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage.TotalCalls++
	if waited > time.Millisecond {
		t.usage.ThrottledCalls++
		t.usage.TotalWait += waited
	}
	return nil
}

// Usage returns current usage.
func (t *Throttle) Usage() UsageStats {
	if t == nil {
		return UsageStats{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}
