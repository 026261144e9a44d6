// Package orders is the order state machine. Every operation is a pure
// function from the current order to the next one plus the side effects it
// implies; the service layer persists both in one transaction.
package orders

import (
	"encoding/json"
	"time"

	"food-order-service/models"
)

// Event is a side effect emitted by a transition.
type Event interface {
	event()
}

// ChatEvent posts a message to the order thread.
type ChatEvent struct {
	Message models.ChatMessage
}

// AuditEvent appends a row to the modification log.
type AuditEvent struct {
	Modification models.OrderModification
}

func (ChatEvent) event()  {}
func (AuditEvent) event() {}

// Outcome is the result of a transition. Changed reports whether Order
// differs from the input and must be saved.
type Outcome struct {
	Order   *models.Order
	Events  []Event
	Changed bool
}

type Actor struct {
	ID   string
	Name string
	Role models.Role
}

func (a Actor) IsOwner() bool { return a.Role == models.RoleOwner }

func unchanged(o *models.Order) Outcome {
	return Outcome{Order: o}
}

func ownerChat(o *models.Order, r models.RestaurantConfig, actor Actor, text string, now time.Time) Event {
	senderID := r.OwnerID
	if actor.IsOwner() && actor.ID != "" {
		senderID = actor.ID
	}
	return ChatEvent{Message: models.ChatMessage{
		OrderID:    o.ID,
		SenderID:   senderID,
		SenderName: r.DisplayName(),
		SenderRole: models.RoleOwner,
		Message:    text,
		Timestamp:  now,
	}}
}

func customerChat(o *models.Order, actor Actor, text string, now time.Time) Event {
	name := actor.Name
	if name == "" {
		name = o.CustomerName
	}
	return ChatEvent{Message: models.ChatMessage{
		OrderID:    o.ID,
		SenderID:   actor.ID,
		SenderName: name,
		SenderRole: models.RoleCustomer,
		Message:    text,
		Timestamp:  now,
	}}
}

func audit(o *models.Order, actor Actor, typ models.ModificationType, prev, next any, details string, now time.Time) Event {
	return AuditEvent{Modification: models.OrderModification{
		OrderID:          o.ID,
		ModifiedBy:       actor.ID,
		ModifiedByName:   actor.Name,
		ModificationType: typ,
		PreviousValue:    snapshot(prev),
		NewValue:         snapshot(next),
		ItemDetails:      details,
		Timestamp:        now,
	}}
}

func snapshot(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
