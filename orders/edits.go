package orders

import (
	"strings"
	"time"

	"food-order-service/apperr"
	"food-order-service/chat"
	"food-order-service/models"
)

// EditSchedule moves (or clears, when at is nil) a pre-order's scheduled
// time.
func EditSchedule(o *models.Order, actor Actor, at *time.Time, r models.RestaurantConfig, now time.Time) (Outcome, error) {
	if !actor.IsOwner() {
		return Outcome{}, apperr.E(apperr.Unauthorized, "only the restaurant can change the schedule")
	}
	if o.Status.Final() {
		return Outcome{}, apperr.E(apperr.OrderFinal, "order is already %s", o.Status)
	}
	if !o.IsPreOrder() {
		return Outcome{}, apperr.E(apperr.InvalidRequest, "only pre-orders have a schedule")
	}
	if at != nil && !at.After(now) {
		return Outcome{}, apperr.E(apperr.InvalidRequest, "scheduled time must be in the future")
	}
	if sameTime(o.PreOrderScheduledAt, at) {
		return unchanged(o), nil
	}

	n := o.Clone()
	n.PreOrderScheduledAt = nil
	if at != nil {
		t := *at
		n.PreOrderScheduledAt = &t
	}
	n.UpdatedAt = now

	type scheduleSnap struct {
		ScheduledAt *time.Time `json:"pre_order_scheduled_at"`
	}
	details := "Schedule removed"
	if at != nil {
		details = "Schedule set to " + at.In(r.Location()).Format(time.RFC1123)
	}
	return Outcome{
		Order:   n,
		Changed: true,
		Events: []Event{
			audit(n, actor, models.ModOrderEdited,
				scheduleSnap{ScheduledAt: o.PreOrderScheduledAt},
				scheduleSnap{ScheduledAt: n.PreOrderScheduledAt},
				details, now),
			ownerChat(n, r, actor, chat.ScheduleMessage(n.PreOrderScheduledAt, r.Location()), now),
		},
	}, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// SubmitRemainingPayment records the customer's proof for the remaining
// balance of a downpayment order. proofURL must already be resolved.
func SubmitRemainingPayment(o *models.Order, actor Actor, proofURL string, now time.Time) (Outcome, error) {
	if actor.Role != models.RoleCustomer || o.CustomerID != actor.ID {
		return Outcome{}, apperr.E(apperr.Unauthorized, "not your order")
	}
	if o.Status == models.StatusCancelled {
		return Outcome{}, apperr.E(apperr.OrderFinal, "order is cancelled")
	}
	if o.PaymentPlan != models.PaymentDownpayment {
		return Outcome{}, apperr.E(apperr.InvalidPaymentProof, "order has no remaining balance")
	}
	if strings.TrimSpace(proofURL) == "" {
		return Outcome{}, apperr.E(apperr.InvalidPaymentProof, "proof of payment is required")
	}

	n := o.Clone()
	n.RemainingPaymentProofURL = proofURL
	n.UpdatedAt = now
	return Outcome{
		Order:   n,
		Changed: true,
		Events:  []Event{customerChat(n, actor, chat.RemainingPaymentMessage(), now)},
	}, nil
}

// Settings are the owner-controlled chat toggles. Nil fields are left as
// they are.
type Settings struct {
	AllowChat           *bool
	AllowCustomerImages *bool
}

func UpdateSettings(o *models.Order, actor Actor, s Settings, now time.Time) (Outcome, error) {
	if !actor.IsOwner() {
		return Outcome{}, apperr.E(apperr.Unauthorized, "only the restaurant can change chat settings")
	}
	n := o.Clone()
	changed := false
	if s.AllowChat != nil && *s.AllowChat != o.AllowChat {
		n.AllowChat = *s.AllowChat
		changed = true
	}
	if s.AllowCustomerImages != nil && *s.AllowCustomerImages != o.AllowCustomerImages {
		n.AllowCustomerImages = *s.AllowCustomerImages
		changed = true
	}
	if !changed {
		return unchanged(o), nil
	}
	n.UpdatedAt = now
	return Outcome{Order: n, Changed: true}, nil
}

// PostMessage validates a human chat message. When the grace period has run
// out the returned outcome carries the order with chat switched off, to be
// saved even though the error is ChatDisabled.
func PostMessage(o *models.Order, actor Actor, text, imageURL string, r models.RestaurantConfig, now time.Time) (Outcome, error) {
	switch actor.Role {
	case models.RoleOwner:
	case models.RoleCustomer:
		if o.CustomerID != actor.ID {
			return Outcome{}, apperr.E(apperr.Unauthorized, "not your order")
		}
	default:
		return Outcome{}, apperr.E(apperr.Unauthorized, "unknown role")
	}

	if closed, ok := CloseExpiredChat(o, r, now); ok {
		return closed, apperr.E(apperr.ChatDisabled, "chat for this order has ended")
	}
	if !chat.Open(o, r, now) {
		return Outcome{}, apperr.E(apperr.ChatDisabled, "chat is disabled for this order")
	}

	if imageURL != "" && actor.Role == models.RoleCustomer && !o.AllowCustomerImages {
		return Outcome{}, apperr.E(apperr.Unauthorized, "images are not allowed in this chat")
	}
	clean := chat.Sanitize(text)
	if clean == "" && imageURL == "" {
		return Outcome{}, apperr.E(apperr.InvalidRequest, "message is empty")
	}

	msg := models.ChatMessage{
		OrderID:    o.ID,
		SenderID:   actor.ID,
		SenderName: actor.Name,
		SenderRole: actor.Role,
		Message:    clean,
		ImageURL:   imageURL,
		Timestamp:  now,
	}
	if msg.SenderName == "" {
		if actor.IsOwner() {
			msg.SenderName = r.DisplayName()
		} else {
			msg.SenderName = o.CustomerName
		}
	}
	return Outcome{Order: o, Events: []Event{ChatEvent{Message: msg}}}, nil
}

// CloseExpiredChat switches chat off once the grace period after a final
// status is over. ok is false when nothing needs to change.
func CloseExpiredChat(o *models.Order, r models.RestaurantConfig, now time.Time) (Outcome, bool) {
	if !chat.Expired(o, r, now) {
		return Outcome{}, false
	}
	n := o.Clone()
	n.AllowChat = false
	n.UpdatedAt = now
	return Outcome{Order: n, Changed: true}, true
}
