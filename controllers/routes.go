package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"food-order-service/middlewares"
	"food-order-service/ratelimit"
)

// Rate limit endpoint names.
const (
	LimitOrders = "orders"
	LimitChat   = "chat"
	LimitWrites = "writes"
)

// RegisterRoutes mounts the API on r. limiter may be nil.
func RegisterRoutes(r *gin.Engine, jwtSecret string, limiter *ratelimit.Limiter) {
	RegisterValidators()

	r.Use(middlewares.PrometheusMiddleware())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	writes := middlewares.RateLimit(limiter, LimitWrites)

	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware(jwtSecret))
	{
		api.POST("/orders", middlewares.RateLimit(limiter, LimitOrders), CreateOrder)
		api.GET("/orders", GetUserOrders)
		api.GET("/orders/:id", GetOrderDetails)
		api.PUT("/orders/:id/status", writes, UpdateOrderStatus)
		api.PUT("/orders/:id/items", writes, UpdateOrderItems)
		api.PUT("/orders/:id/schedule", writes, UpdateSchedule)
		api.PUT("/orders/:id/settings", writes, UpdateSettings)
		api.PATCH("/orders/:id/payment", writes, SubmitRemainingPayment)
		api.GET("/orders/:id/modifications", ListModifications)

		api.POST("/orders/:id/messages", middlewares.RateLimit(limiter, LimitChat), SendChatMessage)
		api.GET("/orders/:id/messages", ListChatMessages)
		api.POST("/orders/:id/messages/read", MarkChatRead)
		api.GET("/messages/unread", GetUnreadSummaries)
	}

	r.POST("/dead-letter", HandleDeadLetter)
}
