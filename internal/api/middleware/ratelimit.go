package middleware

import (
	"log/slog"
	"net/http"

	"lostfound/internal/pkg/metrics"
	"lostfound/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimit 对认证类端点做限流，超速直接拒绝。
//
// Redis 不可用时放行（fail-open），限流不能把登录打挂。
func RateLimit(limiter *ratelimit.RateLimiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		allowed, err := limiter.Allow(c.Request.Context())
		if err != nil {
			logger.Warn("rate limit check failed", slog.String("error", err.Error()))
			c.Next()
			return
		}
		if !allowed {
			metrics.AuthRateLimitedTotal.Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
