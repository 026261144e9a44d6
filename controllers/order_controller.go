package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"food-order-service/apperr"
	"food-order-service/database"
	"food-order-service/logger"
	"food-order-service/middlewares"
	"food-order-service/models"
	"food-order-service/orders"
	"food-order-service/service"
)

var orderService *service.OrderService

func SetOrderService(s *service.OrderService) {
	orderService = s
}

var registerOnce sync.Once

// RegisterValidators adds the order_status and order_type tags to gin's
// validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
			return models.OrderStatus(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("order_type", func(fl validator.FieldLevel) bool {
			return models.OrderType(fl.Field().String()).Valid()
		})
	})
}

func record(c *gin.Context, operation string) {
	status := c.Writer.Status()
	middlewares.RecordOrderOperation(operation, status >= 200 && status < 300)
}

func actor(c *gin.Context) (orders.Actor, bool) {
	a, ok := middlewares.ActorFrom(c)
	if !ok {
		middlewares.AbortWithError(c, apperr.E(apperr.AuthenticationRequired, "authentication required"))
	}
	return a, ok
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && strings.HasSuffix(typeErr.Field, "quantity") {
			middlewares.AbortWithError(c, apperr.Wrap(apperr.InvalidQuantity, err, "quantity must be a positive whole number"))
			return false
		}
		middlewares.AbortWithError(c, apperr.Wrap(apperr.InvalidRequest, err, "invalid request body: %v", err))
		return false
	}
	return true
}

func CreateOrder(c *gin.Context) {
	defer record(c, "create")
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.CreateOrderRequest
	if !bind(c, &req) {
		return
	}
	o, err := orderService.CreateOrder(c.Request.Context(), a, req)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func GetUserOrders(c *gin.Context) {
	defer record(c, "list")
	a, ok := actor(c)
	if !ok {
		return
	}
	f := database.OrderFilter{
		CustomerID: c.Query("customer_id"),
		Status:     models.OrderStatus(c.Query("status")),
	}
	var err error
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	if f.Offset, err = queryInt(c, "offset"); err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	list, err := orderService.ListOrders(c.Request.Context(), a, f)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.E(apperr.InvalidRequest, "%s must be a non-negative integer", key)
	}
	return n, nil
}

func GetOrderDetails(c *gin.Context) {
	defer record(c, "details")
	a, ok := actor(c)
	if !ok {
		return
	}
	o, err := orderService.GetOrder(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func UpdateOrderStatus(c *gin.Context) {
	defer record(c, "update_status")
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.StatusUpdate
	if !bind(c, &req) {
		return
	}
	o, err := orderService.UpdateOrderStatus(c.Request.Context(), a, c.Param("id"), req)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func UpdateOrderItems(c *gin.Context) {
	defer record(c, "update_items")
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.ItemsUpdate
	if !bind(c, &req) {
		return
	}
	o, err := orderService.UpdateOrderItems(c.Request.Context(), a, c.Param("id"), req)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func UpdateSchedule(c *gin.Context) {
	defer record(c, "update_schedule")
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.ScheduleUpdate
	if !bind(c, &req) {
		return
	}
	o, err := orderService.UpdateSchedule(c.Request.Context(), a, c.Param("id"), req)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func UpdateSettings(c *gin.Context) {
	defer record(c, "update_settings")
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.SettingsUpdate
	if !bind(c, &req) {
		return
	}
	o, err := orderService.UpdateSettings(c.Request.Context(), a, c.Param("id"), req)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

const remainingProofField = "remaining_payment_proof_url"

// SubmitRemainingPayment accepts exactly one field, the proof for the
// remaining balance. Any other field is refused.
func SubmitRemainingPayment(c *gin.Context) {
	defer record(c, "remaining_payment")
	a, ok := actor(c)
	if !ok {
		return
	}
	var body map[string]json.RawMessage
	if !bind(c, &body) {
		return
	}
	for k := range body {
		if k != remainingProofField {
			middlewares.AbortWithError(c, apperr.E(apperr.Unauthorized, "customers may only upload the remaining payment proof"))
			return
		}
	}
	var ref string
	if raw, ok := body[remainingProofField]; ok {
		if err := json.Unmarshal(raw, &ref); err != nil {
			middlewares.AbortWithError(c, apperr.E(apperr.InvalidRequest, "%s must be a string", remainingProofField))
			return
		}
	}
	o, err := orderService.SubmitRemainingPayment(c.Request.Context(), a, c.Param("id"), ref)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func ListModifications(c *gin.Context) {
	defer record(c, "modifications")
	a, ok := actor(c)
	if !ok {
		return
	}
	mods, err := orderService.ListModifications(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, mods)
}

// HandleDeadLetter lets operators report a message that could not be
// processed elsewhere.
func HandleDeadLetter(c *gin.Context) {
	defer record(c, "dead_letter")

	var deadLetter struct {
		OrderID string `json:"order_id" binding:"required"`
		Type    string `json:"type"`
		Reason  string `json:"reason"`
	}
	if !bind(c, &deadLetter) {
		return
	}

	logger.App().WithField("order_id", deadLetter.OrderID).
		WithField("type", deadLetter.Type).
		Error("dead letter reported: " + strings.TrimSpace(deadLetter.Reason))
	middlewares.RecordDeadLetter(deadLetter.Type)
	c.JSON(http.StatusOK, gin.H{"message": "Dead letter processed"})
}
