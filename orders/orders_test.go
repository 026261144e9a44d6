package orders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-order-service/apperr"
	"food-order-service/models"
)

var (
	now        = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	restaurant = models.RestaurantConfig{Name: "Mama's Kitchen", OwnerID: "owner-1", ClosingTime: "21:00"}
	owner      = Actor{ID: "owner-1", Name: "Mama", Role: models.RoleOwner}
	customer   = Actor{ID: "cust-1", Name: "Juan", Role: models.RoleCustomer}
	stranger   = Actor{ID: "cust-2", Name: "Pedro", Role: models.RoleCustomer}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(id, name string, qty int, unit string) models.OrderItem {
	u := dec(unit)
	return models.OrderItem{MenuItemID: id, Name: name, Quantity: qty, UnitPrice: u, Price: u.Mul(decimal.NewFromInt(int64(qty)))}
}

func newOrder(status models.OrderStatus) *models.Order {
	o := &models.Order{
		ID:          "order-1",
		CustomerID:  customer.ID,
		OrderType:   models.OrderTypeDelivery,
		Status:      status,
		Items:       []models.OrderItem{item("burger", "Burger", 1, "150"), item("soda", "Soda", 2, "50")},
		Subtotal:    dec("250"),
		PlatformFee: dec("10"),
		DeliveryFee: dec("20"),
		Discount:    dec("25"),
		AllowChat:   true,
	}
	o.RecomputeTotal()
	return o
}

func chats(out Outcome) []models.ChatMessage {
	var msgs []models.ChatMessage
	for _, e := range out.Events {
		if c, ok := e.(ChatEvent); ok {
			msgs = append(msgs, c.Message)
		}
	}
	return msgs
}

func audits(out Outcome) []models.OrderModification {
	var mods []models.OrderModification
	for _, e := range out.Events {
		if a, ok := e.(AuditEvent); ok {
			mods = append(mods, a.Modification)
		}
	}
	return mods
}

func TestPlace(t *testing.T) {
	out := Place(&models.Order{ID: "o", OrderType: models.OrderTypeTakeaway}, restaurant, now)
	assert.Equal(t, models.StatusPending, out.Order.Status)
	assert.True(t, out.Order.AllowChat)
	assert.False(t, out.Order.AllowCustomerImages)
	require.Len(t, chats(out), 1)
	assert.Equal(t, models.RoleOwner, chats(out)[0].SenderRole)
	assert.Equal(t, "Mama's Kitchen", chats(out)[0].SenderName)

	at := now.Add(72 * time.Hour)
	pre := Place(&models.Order{ID: "p", OrderType: models.OrderTypePreOrder, PreOrderScheduledAt: &at}, restaurant, now)
	assert.Equal(t, models.StatusPreOrderPending, pre.Order.Status)
	assert.Contains(t, chats(pre)[0].Message, "Thu, Oct 22 2026")
}

func TestOwnerStatusChanges(t *testing.T) {
	o := newOrder(models.StatusPending)

	out, err := ChangeStatus(o, owner, models.StatusAccepted, StatusExtras{}, restaurant, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, out.Order.Status)
	assert.Equal(t, models.StatusPending, o.Status, "input must not be mutated")
	require.NotNil(t, out.Order.AcceptedAt)
	require.Len(t, chats(out), 1)
	assert.Contains(t, chats(out)[0].Message, "now being prepared")
	mods := audits(out)
	require.Len(t, mods, 1)
	assert.Equal(t, models.ModStatusChanged, mods[0].ModificationType)
	assert.JSONEq(t, `{"status":"pending"}`, mods[0].PreviousValue)
	assert.JSONEq(t, `{"status":"accepted"}`, mods[0].NewValue)

	// Accepting again later gets the generic message.
	back, err := ChangeStatus(out.Order, owner, models.StatusPending, StatusExtras{}, restaurant, now)
	require.NoError(t, err)
	again, err := ChangeStatus(back.Order, owner, models.StatusAccepted, StatusExtras{}, restaurant, now)
	require.NoError(t, err)
	assert.Equal(t, "Your order status was updated to accepted.", chats(again)[0].Message)
}

func TestOwnerDenyIncludesReason(t *testing.T) {
	out, err := ChangeStatus(newOrder(models.StatusPending), owner, models.StatusDenied,
		StatusExtras{DenialReason: "Outside delivery area"}, restaurant, now)
	require.NoError(t, err)
	assert.Equal(t, "Outside delivery area", out.Order.DenialReason)
	assert.Contains(t, chats(out)[0].Message, "Outside delivery area")
}

func TestSameStatusIsNoop(t *testing.T) {
	out, err := ChangeStatus(newOrder(models.StatusReady), owner, models.StatusReady, StatusExtras{}, restaurant, now)
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Empty(t, out.Events)
}

func TestFinalOrdersAreFrozen(t *testing.T) {
	for _, final := range []models.OrderStatus{models.StatusCancelled, models.StatusCompleted, models.StatusDelivered} {
		o := newOrder(final)
		for _, next := range models.AllStatuses {
			_, err := ChangeStatus(o, owner, next, StatusExtras{}, restaurant, now)
			assert.Equal(t, apperr.OrderFinal, apperr.KindOf(err), "%s -> %s", final, next)
		}
		_, err := ChangeStatus(o, customer, models.StatusCancelled, StatusExtras{}, restaurant, now)
		assert.Equal(t, apperr.OrderFinal, apperr.KindOf(err))

		_, err = EditItems(o, owner, []models.OrderItem{item("pizza", "Pizza", 1, "300")}, "", "", restaurant, now)
		assert.Equal(t, apperr.OrderFinal, apperr.KindOf(err))
	}
}

func TestEnteringFinalSetsFinalizedAt(t *testing.T) {
	out, err := ChangeStatus(newOrder(models.StatusInTransit), owner, models.StatusDelivered, StatusExtras{}, restaurant, now)
	require.NoError(t, err)
	require.NotNil(t, out.Order.FinalizedAt)
	assert.Equal(t, now, *out.Order.FinalizedAt)
	assert.Contains(t, chats(out)[0].Message, "delivered")
}

func TestPreOrderConfirmationPromptsForBalance(t *testing.T) {
	o := newOrder(models.StatusPreOrderPending)
	o.OrderType = models.OrderTypePreOrder
	o.PaymentPlan = models.PaymentDownpayment

	out, err := ChangeStatus(o, owner, models.StatusPending, StatusExtras{}, restaurant, now)
	require.NoError(t, err)
	assert.Contains(t, chats(out)[0].Message, "remaining balance")
}

func TestCustomerCannotDoOwnerTransitions(t *testing.T) {
	o := newOrder(models.StatusPending)
	for _, next := range []models.OrderStatus{models.StatusAccepted, models.StatusReady, models.StatusCompleted, models.StatusDenied} {
		_, err := ChangeStatus(o, customer, next, StatusExtras{}, restaurant, now)
		assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err), next)
	}
}

func TestCustomerCancel(t *testing.T) {
	o := newOrder(models.StatusPending)
	o.CustomerGcashNumber = "09171234567"

	out, err := ChangeStatus(o, customer, models.StatusCancelled, StatusExtras{}, restaurant, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, out.Order.Status)
	require.NotNil(t, out.Order.FinalizedAt)

	msgs := chats(out)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleCustomer, msgs[0].SenderRole)
	assert.Equal(t, "I cancelled this order.", msgs[0].Message)
	assert.Equal(t, models.RoleOwner, msgs[1].SenderRole)
	assert.Contains(t, msgs[1].Message, "09171234567")
	assert.Len(t, audits(out), 1)
}

func TestCustomerCancelRules(t *testing.T) {
	_, err := ChangeStatus(newOrder(models.StatusPending), stranger, models.StatusCancelled, StatusExtras{}, restaurant, now)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	_, err = ChangeStatus(newOrder(models.StatusDenied), customer, models.StatusCancelled, StatusExtras{}, restaurant, now)
	assert.NoError(t, err)

	for _, s := range []models.OrderStatus{models.StatusAccepted, models.StatusReady, models.StatusInTransit} {
		_, err = ChangeStatus(newOrder(s), customer, models.StatusCancelled, StatusExtras{}, restaurant, now)
		assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err), s)
	}

	// pre-order-pending is only cancellable on pre-orders.
	_, err = ChangeStatus(newOrder(models.StatusPreOrderPending), customer, models.StatusCancelled, StatusExtras{}, restaurant, now)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}

func TestPreOrderCancellationWindow(t *testing.T) {
	scheduled := now.Add(48 * time.Hour)
	o := newOrder(models.StatusPreOrderPending)
	o.OrderType = models.OrderTypePreOrder
	o.PreOrderScheduledAt = &scheduled

	_, err := Cancel(o, customer, restaurant, scheduled.Add(-23*time.Hour))
	assert.Equal(t, apperr.CancellationWindowClosed, apperr.KindOf(err))

	out, err := Cancel(o, customer, restaurant, scheduled.Add(-25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, out.Order.Status)

	_, err = Cancel(o, customer, restaurant, scheduled.Add(-24*time.Hour))
	assert.NoError(t, err, "exactly one day ahead is still allowed")

	o.PreOrderScheduledAt = nil
	_, err = Cancel(o, customer, restaurant, now)
	assert.NoError(t, err, "unscheduled pre-orders cancel freely")
}

func TestEditItemsProducesOneAuditAndOneChat(t *testing.T) {
	o := newOrder(models.StatusPending)
	items := append([]models.OrderItem{}, o.Items...)
	items = append(items, item("pizza", "Pizza", 1, "300"))

	out, err := EditItems(o, owner, items, "", "customer asked by phone", restaurant, now)
	require.NoError(t, err)

	assert.Equal(t, "550", out.Order.Subtotal.String())
	assert.Equal(t, "10", out.Order.PlatformFee.String())
	assert.Equal(t, "20", out.Order.DeliveryFee.String())
	assert.Equal(t, "25", out.Order.Discount.String())
	assert.Equal(t, "555", out.Order.Total.String())

	mods := audits(out)
	require.Len(t, mods, 1)
	assert.Equal(t, models.ModItemAdded, mods[0].ModificationType)
	assert.Contains(t, mods[0].ItemDetails, "added: Pizza x1")
	assert.Contains(t, mods[0].ItemDetails, "customer asked by phone")

	msgs := chats(out)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Message, "added: Pizza x1")
}

func TestGeneratedChatStripsMarkup(t *testing.T) {
	t.Run("denial reason", func(t *testing.T) {
		out, err := ChangeStatus(newOrder(models.StatusPending), owner, models.StatusDenied,
			StatusExtras{DenialReason: `<img src=x onerror="alert(1)">closed`}, restaurant, now)
		require.NoError(t, err)
		assert.Equal(t, "closed", out.Order.DenialReason)
		assert.Equal(t, "Sorry, your order was denied. Reason: closed", chats(out)[0].Message)
	})

	t.Run("refund notice", func(t *testing.T) {
		o := newOrder(models.StatusPending)
		o.CustomerGcashNumber = "<script>x()</script>0917"
		out, err := Cancel(o, customer, restaurant, now)
		require.NoError(t, err)
		msgs := chats(out)
		require.Len(t, msgs, 2)
		assert.Equal(t, "Your order has been cancelled. Any payment you made will be refunded to your GCash number 0917.", msgs[1].Message)
	})

	t.Run("edit note", func(t *testing.T) {
		o := newOrder(models.StatusPending)
		items := append([]models.OrderItem{}, o.Items...)
		items = append(items, item("pizza", "Pizza", 1, "300"))
		out, err := EditItems(o, owner, items, "", "<b onclick=x()>note</b>", restaurant, now)
		require.NoError(t, err)
		msg := chats(out)[0].Message
		assert.NotContains(t, msg, "<")
		assert.Contains(t, msg, "Note: note")
		assert.Contains(t, audits(out)[0].ItemDetails, "(note)")
	})
}

func TestEditItemsDiff(t *testing.T) {
	o := newOrder(models.StatusReady)
	items := []models.OrderItem{item("burger", "Burger", 3, "160")}

	out, err := EditItems(o, owner, items, models.ModOrderEdited, "", restaurant, now)
	require.NoError(t, err)

	msg := chats(out)[0].Message
	assert.Contains(t, msg, "removed: Soda x2")
	assert.Contains(t, msg, "quantity: Burger x1 -> x3")
	assert.Contains(t, msg, "price: Burger 150.00 -> 160.00")
	assert.Equal(t, models.ModOrderEdited, audits(out)[0].ModificationType)
	assert.Equal(t, "480", out.Order.Subtotal.String())
}

func TestEditItemsRules(t *testing.T) {
	items := []models.OrderItem{item("pizza", "Pizza", 1, "300")}

	_, err := EditItems(newOrder(models.StatusAccepted), owner, items, "", "", restaurant, now)
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))
	_, err = EditItems(newOrder(models.StatusInTransit), owner, items, "", "", restaurant, now)
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))

	_, err = EditItems(newOrder(models.StatusPending), customer, items, "", "", restaurant, now)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	_, err = EditItems(newOrder(models.StatusPending), owner, nil, "", "", restaurant, now)
	assert.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	_, err = EditItems(newOrder(models.StatusPending), owner, items, "bogus", "", restaurant, now)
	assert.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	zero := []models.OrderItem{item("pizza", "Pizza", 0, "300")}
	_, err = EditItems(newOrder(models.StatusPending), owner, zero, "", "", restaurant, now)
	assert.Equal(t, apperr.InvalidQuantity, apperr.KindOf(err))

	o := newOrder(models.StatusPending)
	out, err := EditItems(o, owner, o.Items, "", "", restaurant, now)
	require.NoError(t, err)
	assert.False(t, out.Changed)
}

func TestEditSchedule(t *testing.T) {
	at := now.Add(72 * time.Hour)
	o := newOrder(models.StatusPreOrderPending)
	o.OrderType = models.OrderTypePreOrder

	out, err := EditSchedule(o, owner, &at, restaurant, now)
	require.NoError(t, err)
	require.NotNil(t, out.Order.PreOrderScheduledAt)
	assert.Equal(t, at, *out.Order.PreOrderScheduledAt)
	assert.Len(t, audits(out), 1)
	assert.Contains(t, chats(out)[0].Message, "Thu, Oct 22 2026")

	removed, err := EditSchedule(out.Order, owner, nil, restaurant, now)
	require.NoError(t, err)
	assert.Nil(t, removed.Order.PreOrderScheduledAt)
	assert.Contains(t, chats(removed)[0].Message, "removed")

	past := now.Add(-time.Hour)
	_, err = EditSchedule(o, owner, &past, restaurant, now)
	assert.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	_, err = EditSchedule(newOrder(models.StatusPending), owner, &at, restaurant, now)
	assert.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	_, err = EditSchedule(o, customer, &at, restaurant, now)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}

func TestSubmitRemainingPayment(t *testing.T) {
	o := newOrder(models.StatusAccepted)
	o.PaymentPlan = models.PaymentDownpayment

	out, err := SubmitRemainingPayment(o, customer, "https://cdn/proof.jpg", now)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/proof.jpg", out.Order.RemainingPaymentProofURL)
	assert.Equal(t, models.RoleCustomer, chats(out)[0].SenderRole)

	_, err = SubmitRemainingPayment(o, stranger, "https://cdn/proof.jpg", now)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	full := newOrder(models.StatusAccepted)
	full.PaymentPlan = models.PaymentFull
	_, err = SubmitRemainingPayment(full, customer, "https://cdn/proof.jpg", now)
	assert.Equal(t, apperr.InvalidPaymentProof, apperr.KindOf(err))
}

func TestPostMessage(t *testing.T) {
	o := newOrder(models.StatusPending)

	out, err := PostMessage(o, customer, "<b>Hi!</b> Is it spicy?", "", restaurant, now)
	require.NoError(t, err)
	msgs := chats(out)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hi! Is it spicy?", msgs[0].Message)
	assert.False(t, out.Changed)

	_, err = PostMessage(o, stranger, "hello", "", restaurant, now)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	_, err = PostMessage(o, customer, "<p> </p>", "", restaurant, now)
	assert.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	_, err = PostMessage(o, customer, "look", "https://cdn/pic.jpg", restaurant, now)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
	o.AllowCustomerImages = true
	_, err = PostMessage(o, customer, "look", "https://cdn/pic.jpg", restaurant, now)
	assert.NoError(t, err)
}

func TestPostMessageAfterGracePeriod(t *testing.T) {
	done := now
	o := newOrder(models.StatusCompleted)
	o.FinalizedAt = &done

	_, err := PostMessage(o, customer, "thanks!", "", restaurant, now.Add(2*time.Hour))
	assert.NoError(t, err)

	after := time.Date(2026, 10, 20, 21, 0, 1, 0, time.UTC)
	out, err := PostMessage(o, customer, "one more thing", "", restaurant, after)
	assert.Equal(t, apperr.ChatDisabled, apperr.KindOf(err))
	require.True(t, out.Changed)
	assert.False(t, out.Order.AllowChat)
	assert.Empty(t, out.Events)

	out, err = PostMessage(out.Order, owner, "hello?", "", restaurant, after)
	assert.Equal(t, apperr.ChatDisabled, apperr.KindOf(err))
	assert.False(t, out.Changed)
}

func TestUpdateSettings(t *testing.T) {
	yes, no := true, false
	out, err := UpdateSettings(newOrder(models.StatusPending), owner, Settings{AllowChat: &no, AllowCustomerImages: &yes}, now)
	require.NoError(t, err)
	assert.False(t, out.Order.AllowChat)
	assert.True(t, out.Order.AllowCustomerImages)

	_, err = UpdateSettings(newOrder(models.StatusPending), customer, Settings{AllowChat: &no}, now)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}
