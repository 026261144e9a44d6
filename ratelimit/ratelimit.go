// Package ratelimit implements per-identity, per-endpoint fixed-window
// counters on top of ulule/limiter.
package ratelimit

import (
	"context"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"food-order-service/apperr"
)

const storePrefix = "food_order"

type Rule struct {
	Max    int
	Window time.Duration
}

// Limiter holds one ulule limiter per endpoint, all sharing a store.
type Limiter struct {
	limiters map[string]*limiter.Limiter
}

// NewMemoryStore returns a process-local store. Expired windows are dropped
// every cleanup interval.
func NewMemoryStore(cleanup time.Duration) limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          storePrefix,
		CleanUpInterval: cleanup,
	})
}

// New builds a Limiter. Rules with a non-positive budget or window are
// skipped, which leaves their endpoint unlimited.
func New(store limiter.Store, rules map[string]Rule) *Limiter {
	l := &Limiter{limiters: make(map[string]*limiter.Limiter, len(rules))}
	for endpoint, rule := range rules {
		if rule.Max <= 0 || rule.Window <= 0 {
			continue
		}
		l.limiters[endpoint] = limiter.New(store, limiter.Rate{
			Period: rule.Window,
			Limit:  int64(rule.Max),
		})
	}
	return l
}

// Allow counts one request by identity against endpoint and fails with
// RateLimitExceeded once the rule's budget for the window is spent.
// Endpoints without a rule are not limited.
func (l *Limiter) Allow(ctx context.Context, identity, endpoint string) error {
	lim, ok := l.limiters[endpoint]
	if !ok {
		return nil
	}
	res, err := lim.Get(ctx, endpoint+":"+identity)
	if err != nil {
		return err
	}
	if !res.Reached {
		return nil
	}
	retry := time.Until(time.Unix(res.Reset, 0)).Round(time.Second)
	if retry < time.Second {
		retry = time.Second
	}
	return &apperr.Error{
		Kind:       apperr.RateLimitExceeded,
		Message:    "too many requests, please try again later",
		RetryAfter: retry,
	}
}
