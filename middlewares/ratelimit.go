package middlewares

import (
	"github.com/gin-gonic/gin"

	"food-order-service/apperr"
	"food-order-service/logger"
	"food-order-service/ratelimit"
)

// RateLimit counts the request against endpoint for the authenticated
// caller, or the client IP when there is none. A nil limiter disables it.
// Store failures let the request through.
func RateLimit(l *ratelimit.Limiter, endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		identity := "ip:" + c.ClientIP()
		if a, ok := ActorFrom(c); ok {
			identity = "user:" + a.ID
		}
		if err := l.Allow(c.Request.Context(), identity, endpoint); err != nil {
			if apperr.KindOf(err) == apperr.RateLimitExceeded {
				rateLimited.WithLabelValues(endpoint).Inc()
				AbortWithError(c, err)
				return
			}
			logger.App().WithError(err).WithField("endpoint", endpoint).Warn("rate limit store failed")
		}
		c.Next()
	}
}
