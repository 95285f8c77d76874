package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RateLimit 返回一个基于客户端 IP 的限流中间件。
// keyPrefix 用于隔离同一 Redis 实例上多套部署的计数器 (配置 REDIS_KEY_PREFIX)。
// maxRequests 是 window 时间窗口内允许的最大请求数。
func RateLimit(redisClient *redis.Client, keyPrefix string, maxRequests int, window time.Duration) gin.HandlerFunc {
	// 启动时检查依赖
	if redisClient == nil {
		panic("Redis client cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		// 反向代理后面时 ClientIP 依赖正确的代理头配置
		key := keyPrefix + "ratelimit:" + c.ClientIP()

		// INCR 和 EXPIRE 放进同一个 Pipeline，减少计数与过期设置之间的竞争窗口
		pipe := redisClient.Pipeline()
		incrCmd := pipe.Incr(c.Request.Context(), key)
		pipe.Expire(c.Request.Context(), key, window)
		if _, err := pipe.Exec(c.Request.Context()); err != nil {
			logrus.WithError(err).Error("RateLimit: Redis pipeline failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limiting error"})
			c.Abort()
			return
		}

		count, err := incrCmd.Result()
		if err != nil {
			logrus.WithError(err).Error("RateLimit: Failed to get INCR result after successful Exec")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limiting error"})
			c.Abort()
			return
		}

		if count > int64(maxRequests) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}

		c.Next()
	}
}
