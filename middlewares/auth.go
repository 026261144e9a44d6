package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"

	"food-order-service/apperr"
	"food-order-service/orders"
	"food-order-service/utils"
)

const actorKey = "actor"

// AuthMiddleware requires a bearer token signed with secret and stores the
// caller as an orders.Actor on the context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			AbortWithError(c, apperr.E(apperr.AuthenticationRequired, "authentication required"))
			return
		}
		claims, err := utils.ParseToken(secret, strings.TrimSpace(token))
		if err != nil {
			AbortWithError(c, apperr.Wrap(apperr.AuthenticationRequired, err, "invalid or expired token"))
			return
		}
		c.Set(actorKey, orders.Actor{ID: claims.UserID, Name: claims.Name, Role: claims.Role})
		c.Next()
	}
}

// ActorFrom returns the authenticated caller.
func ActorFrom(c *gin.Context) (orders.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return orders.Actor{}, false
	}
	a, ok := v.(orders.Actor)
	return a, ok
}
