package orders

import (
	"fmt"
	"time"

	"food-order-service/apperr"
	"food-order-service/chat"
	"food-order-service/models"
)

// CancellationWindow is how far ahead of its schedule a pre-order can still
// be cancelled by the customer.
const CancellationWindow = 24 * time.Hour

// Place sets the initial state of a freshly priced order and seeds its chat
// thread.
func Place(o *models.Order, r models.RestaurantConfig, now time.Time) Outcome {
	next := o.Clone()
	next.Status = models.StatusPending
	if next.IsPreOrder() {
		next.Status = models.StatusPreOrderPending
	}
	next.AllowChat = true
	next.AllowCustomerImages = false
	next.CreatedAt = now
	next.UpdatedAt = now

	return Outcome{
		Order:   next,
		Changed: true,
		Events: []Event{
			ownerChat(next, r, Actor{}, chat.WelcomeMessage(next, r.Location()), now),
		},
	}
}

// StatusExtras carries optional data sent along with a status change.
type StatusExtras struct {
	DenialReason string
}

// ChangeStatus applies a status change requested by actor. Customers may
// only cancel; everything else is owner-only.
func ChangeStatus(o *models.Order, actor Actor, next models.OrderStatus, extras StatusExtras, r models.RestaurantConfig, now time.Time) (Outcome, error) {
	if !next.Valid() {
		return Outcome{}, apperr.E(apperr.InvalidRequest, "unknown status %q", next)
	}

	switch actor.Role {
	case models.RoleCustomer:
		if o.CustomerID != actor.ID {
			return Outcome{}, apperr.E(apperr.Unauthorized, "not your order")
		}
		if next != models.StatusCancelled {
			return Outcome{}, apperr.E(apperr.Unauthorized, "customers can only cancel orders")
		}
		return Cancel(o, actor, r, now)
	case models.RoleOwner:
	default:
		return Outcome{}, apperr.E(apperr.Unauthorized, "unknown role")
	}

	if o.Status.Final() {
		return Outcome{}, apperr.E(apperr.OrderFinal, "order is already %s", o.Status)
	}
	if next == o.Status && next != models.StatusDenied {
		return unchanged(o), nil
	}

	prev := o.Status
	n := o.Clone()
	n.Status = next
	n.UpdatedAt = now
	if next == models.StatusDenied {
		n.DenialReason = chat.StripTags(extras.DenialReason)
	}
	firstAccept := next == models.StatusAccepted && o.AcceptedAt == nil
	if firstAccept {
		n.AcceptedAt = &now
	}
	if next.Final() {
		n.FinalizedAt = &now
	}

	type statusSnap struct {
		Status       models.OrderStatus `json:"status"`
		DenialReason string             `json:"denial_reason,omitempty"`
	}
	return Outcome{
		Order:   n,
		Changed: true,
		Events: []Event{
			audit(n, actor, models.ModStatusChanged,
				statusSnap{Status: prev, DenialReason: o.DenialReason},
				statusSnap{Status: next, DenialReason: n.DenialReason},
				fmt.Sprintf("Status changed from %s to %s", prev, next), now),
			ownerChat(n, r, actor, chat.StatusMessage(n, r, prev, next, firstAccept), now),
		},
	}, nil
}

// Cancel is the customer cancellation path.
func Cancel(o *models.Order, actor Actor, r models.RestaurantConfig, now time.Time) (Outcome, error) {
	if actor.Role != models.RoleCustomer || o.CustomerID != actor.ID {
		return Outcome{}, apperr.E(apperr.Unauthorized, "not your order")
	}
	if o.Status.Final() {
		return Outcome{}, apperr.E(apperr.OrderFinal, "order is already %s", o.Status)
	}
	if !customerCancellable(o) {
		return Outcome{}, apperr.E(apperr.Unauthorized, "orders that are %s can no longer be cancelled", o.Status)
	}
	// Pre-orders without a schedule are cancellable at any time.
	if o.PreOrderScheduledAt != nil && o.PreOrderScheduledAt.Sub(now) < CancellationWindow {
		return Outcome{}, apperr.E(apperr.CancellationWindowClosed, "pre-orders can only be cancelled at least one day before the scheduled time")
	}

	prev := o.Status
	n := o.Clone()
	n.Status = models.StatusCancelled
	n.UpdatedAt = now
	n.FinalizedAt = &now

	return Outcome{
		Order:   n,
		Changed: true,
		Events: []Event{
			audit(n, actor, models.ModStatusChanged,
				map[string]models.OrderStatus{"status": prev},
				map[string]models.OrderStatus{"status": models.StatusCancelled},
				fmt.Sprintf("Cancelled by customer (was %s)", prev), now),
			customerChat(n, actor, chat.CustomerCancelMessage(), now),
			ownerChat(n, r, Actor{}, chat.RefundNotice(n), now),
		},
	}, nil
}

func customerCancellable(o *models.Order) bool {
	switch o.Status {
	case models.StatusPending, models.StatusDenied:
		return true
	case models.StatusPreOrderPending:
		return o.IsPreOrder()
	}
	return false
}
