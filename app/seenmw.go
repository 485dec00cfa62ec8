package app

import (
	"time"

	"Gin_postgres_redis_campus_rent/db"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// TouchLastSeen 节流更新 last_seen_at：每个用户每 throttle 最多写一次库
func TouchLastSeen(repo *db.Repo, rdb *redis.Client, throttle time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(CtxUserID)
		if uid == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := "rr:lastseen:" + uid
		if ok, _ := rdb.SetNX(ctx, key, "1", throttle).Result(); ok {
			if err := repo.TouchUserSeen(ctx, uid); err != nil { // 不阻塞请求
				log.Ctx(ctx).Warn().Err(err).Msg("touch last seen")
			}
		}
		c.Next()
	}
}
