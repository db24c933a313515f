package auth

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// LoginRateLimiter limits sign-in attempts per client IP. With a Redis client
// the counters are shared across replicas, otherwise they live in memory.
func LoginRateLimiter(perMinute int64, client *redis.Client) (gin.HandlerFunc, error) {
	rate := limiter.Rate{
		Period: 1 * time.Minute,
		Limit:  perMinute,
	}

	store := memory.NewStore()
	if client != nil {
		var err error
		store, err = sredis.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix: "bpls:login-limit",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limit store: %w", err)
		}
	}

	return ginlimiter.NewMiddleware(limiter.New(store, rate)), nil
}
