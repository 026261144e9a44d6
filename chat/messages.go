package chat

import (
	"fmt"
	"time"

	"food-order-service/models"
)

const scheduleLayout = "Mon, Jan 2 2006 at 3:04 PM"

// StatusMessage returns the automatic owner message for a status change.
// firstAccept is true when the order has never been accepted before.
func StatusMessage(o *models.Order, r models.RestaurantConfig, prev, next models.OrderStatus, firstAccept bool) string {
	if prev == models.StatusPreOrderPending && next == models.StatusPending {
		msg := "We've received your pre-order and it is now confirmed in our queue."
		if o.PaymentPlan == models.PaymentDownpayment && o.RemainingPaymentProofURL == "" {
			if gcash := StripTags(r.GcashNumber); gcash != "" {
				msg += fmt.Sprintf(" Please send the remaining balance of %s to our GCash number %s and upload the proof before your scheduled time.",
					o.Total.Sub(o.DownpaymentAmount).StringFixed(2), gcash)
			} else {
				msg += " Please upload proof of payment for the remaining balance before your scheduled time."
			}
		}
		return msg
	}

	switch next {
	case models.StatusAccepted:
		if firstAccept {
			return "Your order has been accepted and is now being prepared."
		}
	case models.StatusReady:
		return "Your order is ready for pickup."
	case models.StatusInTransit:
		return "Your order is on the way!"
	case models.StatusDelivered:
		return "Your order has been delivered. Thank you for ordering with us!"
	case models.StatusCompleted:
		return "Your order is completed. Thank you for ordering with us!"
	case models.StatusDenied:
		reason := StripTags(o.DenialReason)
		if reason == "" {
			reason = "no reason was given"
		}
		return "Sorry, your order was denied. Reason: " + reason
	}
	return fmt.Sprintf("Your order status was updated to %s.", next)
}

// WelcomeMessage seeds the thread of a new order.
func WelcomeMessage(o *models.Order, loc *time.Location) string {
	if o.IsPreOrder() && o.PreOrderScheduledAt != nil {
		return fmt.Sprintf("Thank you for your pre-order! It is scheduled for %s. We'll confirm it shortly.",
			o.PreOrderScheduledAt.In(loc).Format(scheduleLayout))
	}
	return "Thank you for your order! We'll review it shortly. You can message us here if you have questions."
}

// CustomerCancelMessage is posted in the customer's name when they cancel.
func CustomerCancelMessage() string {
	return "I cancelled this order."
}

// RefundNotice is the owner's reply to a customer cancellation.
func RefundNotice(o *models.Order) string {
	if gcash := StripTags(o.CustomerGcashNumber); gcash != "" {
		return fmt.Sprintf("Your order has been cancelled. Any payment you made will be refunded to your GCash number %s.", gcash)
	}
	return "Your order has been cancelled. Please send us your GCash number so we can refund any payment you made."
}

// ItemsChangedMessage announces an item edit made by the restaurant.
func ItemsChangedMessage(summary, note string) string {
	msg := "Your order was updated: " + summary
	if note = StripTags(note); note != "" {
		msg += " Note: " + note
	}
	return msg
}

// ScheduleMessage announces a new (or removed) pre-order date.
func ScheduleMessage(at *time.Time, loc *time.Location) string {
	if at == nil {
		return "The schedule of your pre-order was removed. We'll reach out to agree on a new time."
	}
	return fmt.Sprintf("Your pre-order is now scheduled for %s.", at.In(loc).Format(scheduleLayout))
}

// RemainingPaymentMessage is posted in the customer's name after they
// upload the remaining balance proof.
func RemainingPaymentMessage() string {
	return "I uploaded the proof of payment for the remaining balance."
}
