package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"food-order-service/middlewares"
)

type chatMessageRequest struct {
	Message string `json:"message"`
	Image   string `json:"image"`
}

func SendChatMessage(c *gin.Context) {
	defer record(c, "chat_send")
	a, ok := actor(c)
	if !ok {
		return
	}
	var req chatMessageRequest
	if !bind(c, &req) {
		return
	}
	msg, err := orderService.SendChatMessage(c.Request.Context(), a, c.Param("id"), req.Message, req.Image)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func ListChatMessages(c *gin.Context) {
	defer record(c, "chat_list")
	a, ok := actor(c)
	if !ok {
		return
	}
	msgs, err := orderService.ListMessages(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func MarkChatRead(c *gin.Context) {
	defer record(c, "chat_read")
	a, ok := actor(c)
	if !ok {
		return
	}
	cursor, err := orderService.MarkRead(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	if cursor == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, cursor)
}

// GetUnreadSummaries takes a comma-separated order_ids query.
func GetUnreadSummaries(c *gin.Context) {
	defer record(c, "chat_unread")
	a, ok := actor(c)
	if !ok {
		return
	}
	var ids []string
	for _, v := range c.QueryArray("order_ids") {
		ids = append(ids, strings.Split(v, ",")...)
	}
	sums, err := orderService.UnreadSummaries(c.Request.Context(), a, ids)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sums)
}
