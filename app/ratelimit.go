package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// LoginRateLimit 每个 IP 每分钟最多 limit 次（Redis 固定窗口）。
// Redis 不可用时放行。
func LoginRateLimit(rdb *redis.Client, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		window := time.Now().Unix() / 60
		key := fmt.Sprintf("rr:login_rate:%s:%d", c.ClientIP(), window)

		pipe := rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, time.Minute)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("login rate limit")
			c.Next()
			return
		}
		if incr.Val() > int64(limit) {
			Fail(c, http.StatusTooManyRequests, "Too many login attempts, try again in a minute", nil)
			return
		}
		c.Next()
	}
}
