package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	extratelimit "github.com/vnmchuo/ratelimiter"
)

// Limiter is a thin wrapper around github.com/vnmchuo/ratelimiter that meters
// odometer reading calls per customer.
type Limiter struct {
	store extratelimit.Limiter
	limit int
}

func NewLimiter(rdb *redis.Client, readingsPerMinute int64) *Limiter {
	store := extratelimit.NewRedisStore(rdb,
		extratelimit.WithLimit(int(readingsPerMinute)),
		extratelimit.WithWindow(time.Minute),
	)
	return &Limiter{store: store, limit: int(readingsPerMinute)}
}

func NewTestLimiter(store extratelimit.Limiter, readingsPerMinute int64) *Limiter {
	return &Limiter{store: store, limit: int(readingsPerMinute)}
}

// Allow spends readings calls from customer's budget for this minute. A bill
// needing more than the whole budget is charged the whole budget, so it runs
// once the customer's window is empty.
func (l *Limiter) Allow(ctx context.Context, customer string, readings int) (*extratelimit.Result, error) {
	if l.limit > 0 && readings > l.limit {
		readings = l.limit
	}
	return l.store.AllowN(ctx, key(customer), readings)
}

func key(customer string) string {
	return fmt.Sprintf("ratelimit:customer:%s", customer)
}
