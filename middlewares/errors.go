package middlewares

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"food-order-service/apperr"
	"food-order-service/logger"
)

// HTTPStatus maps an error kind to its response status.
func HTTPStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.AuthenticationRequired:
		return http.StatusUnauthorized
	case apperr.Unauthorized:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.OrderFinal, apperr.InvalidState, apperr.CancellationWindowClosed,
		apperr.ChatDisabled, apperr.VoucherExhausted, apperr.OrdersClosed, apperr.AmountMismatch:
		return http.StatusConflict
	case apperr.ItemUnavailable, apperr.VariantUnavailable, apperr.ChoiceUnavailable,
		apperr.BundleItemUnavailable, apperr.InvalidQuantity, apperr.InvalidVoucher,
		apperr.VoucherExpired, apperr.MinOrderNotMet, apperr.InvalidCoordinates,
		apperr.InvalidPaymentProof, apperr.DeliveryUnavailable:
		return http.StatusUnprocessableEntity
	case apperr.RateLimitExceeded:
		return http.StatusTooManyRequests
	case apperr.InvalidRequest:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// AbortWithError writes err as {"error", "code"} and stops the chain.
// Internal errors are logged and their details hidden.
func AbortWithError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := HTTPStatus(kind)
	if status == http.StatusInternalServerError {
		logger.App().WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	if retry := apperr.RetryAfter(err); retry > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": apperr.Message(err),
		"code":  kind,
	})
}
