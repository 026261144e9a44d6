package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-order-service/models"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hello", "hello"},
		{"  <b>hi</b>   there \n", "hi there"},
		{`<img src=x onerror="alert(1)">yo`, "yo"},
		{"<script>alert('x')</script>ok", "ok"},
		{"<style>p{}</style>styled", "styled"},
		{"&lt;script&gt;alert(1)&lt;/script&gt;", "scriptalert(1)/script"},
		{"5 &amp; 6", "5 & 6"},
		{"<p></p>", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), tt.in)
	}
}

func TestSanitizeCapsLength(t *testing.T) {
	long := strings.Repeat("ñ", 150)
	got := Sanitize(long)
	assert.Equal(t, MaxMessageLength, len([]rune(got)))
}

func TestStatusMessage(t *testing.T) {
	o := &models.Order{PaymentPlan: models.PaymentDownpayment}
	r := models.RestaurantConfig{}

	pre := StatusMessage(o, r, models.StatusPreOrderPending, models.StatusPending, false)
	assert.Contains(t, pre, "pre-order")
	assert.Contains(t, pre, "remaining balance")

	o.RemainingPaymentProofURL = "https://x/proof.png"
	assert.NotContains(t, StatusMessage(o, r, models.StatusPreOrderPending, models.StatusPending, false), "remaining balance")

	assert.Contains(t, StatusMessage(o, r, models.StatusPending, models.StatusAccepted, true), "now being prepared")
	assert.Equal(t, "Your order status was updated to accepted.", StatusMessage(o, r, models.StatusReady, models.StatusAccepted, false))
	assert.Contains(t, StatusMessage(o, r, models.StatusAccepted, models.StatusReady, false), "ready for pickup")
	assert.Contains(t, StatusMessage(o, r, models.StatusReady, models.StatusInTransit, false), "on the way")
	assert.Contains(t, StatusMessage(o, r, models.StatusInTransit, models.StatusDelivered, false), "delivered")
	assert.Contains(t, StatusMessage(o, r, models.StatusReady, models.StatusCompleted, false), "completed")
	assert.Equal(t, "Your order status was updated to pending.", StatusMessage(o, r, models.StatusDenied, models.StatusPending, false))

	o.DenialReason = "Out of dough"
	assert.Contains(t, StatusMessage(o, r, models.StatusPending, models.StatusDenied, false), "Reason: Out of dough")
}

func TestRefundNotice(t *testing.T) {
	assert.Contains(t, RefundNotice(&models.Order{CustomerGcashNumber: "09171234567"}), "09171234567")
	assert.Contains(t, RefundNotice(&models.Order{}), "send us your GCash number")
}

func TestStripTagsKeepsLength(t *testing.T) {
	long := "<b>" + strings.Repeat("a", 150) + "</b>"
	assert.Equal(t, strings.Repeat("a", 150), StripTags(long))
}

func TestGeneratedMessagesAreTagStripped(t *testing.T) {
	o := &models.Order{
		DenialReason:        `<img src=x onerror="alert(1)">closed`,
		CustomerGcashNumber: "<script>x()</script>0917",
	}
	r := models.RestaurantConfig{}

	denied := StatusMessage(o, r, models.StatusPending, models.StatusDenied, false)
	assert.Equal(t, "Sorry, your order was denied. Reason: closed", denied)

	assert.Equal(t, "Your order has been cancelled. Any payment you made will be refunded to your GCash number 0917.", RefundNotice(o))
	assert.Contains(t, RefundNotice(&models.Order{CustomerGcashNumber: "<b></b>"}), "send us your GCash number")

	edited := ItemsChangedMessage("added: Soda x1", "<b onclick=x()>note</b>")
	assert.Equal(t, "Your order was updated: added: Soda x1 Note: note", edited)
	assert.Contains(t, ItemsChangedMessage("quantity: Soda x1 -> x2", ""), "x1 -> x2")
	for _, msg := range []string{denied, RefundNotice(o), edited} {
		assert.NotContains(t, msg, "<")
		assert.NotContains(t, msg, ">")
	}
}

func TestBalancePromptNamesRestaurantGcash(t *testing.T) {
	o := &models.Order{
		PaymentPlan:       models.PaymentDownpayment,
		Total:             decimal.RequireFromString("500"),
		DownpaymentAmount: decimal.RequireFromString("200"),
	}
	r := models.RestaurantConfig{GcashNumber: "09171234567"}

	msg := StatusMessage(o, r, models.StatusPreOrderPending, models.StatusPending, false)
	assert.Contains(t, msg, "remaining balance of 300.00")
	assert.Contains(t, msg, "GCash number 09171234567")
}

func TestScheduleMessage(t *testing.T) {
	at := time.Date(2026, 10, 25, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "Your pre-order is now scheduled for Sun, Oct 25 2026 at 10:30 AM.", ScheduleMessage(&at, time.UTC))
	assert.Contains(t, ScheduleMessage(nil, time.UTC), "removed")
}

func TestGraceDeadline(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	finalized := time.Date(2026, 10, 19, 23, 30, 0, 0, manila)

	withClosing := models.RestaurantConfig{Timezone: "Asia/Manila", ClosingTime: "21:00"}
	assert.Equal(t, time.Date(2026, 10, 20, 21, 0, 0, 0, manila), GraceDeadline(finalized, withClosing))

	without := models.RestaurantConfig{Timezone: "Asia/Manila"}
	assert.Equal(t, time.Date(2026, 10, 21, 0, 0, 0, 0, manila), GraceDeadline(finalized, without))

	// Month boundary.
	eom := time.Date(2026, 10, 31, 8, 0, 0, 0, manila)
	assert.Equal(t, time.Date(2026, 11, 1, 21, 0, 0, 0, manila), GraceDeadline(eom, withClosing))
}

func TestOpen(t *testing.T) {
	r := models.RestaurantConfig{ClosingTime: "21:00"}
	done := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	o := &models.Order{Status: models.StatusCompleted, AllowChat: true, FinalizedAt: &done}

	assert.True(t, Open(o, r, done.Add(time.Hour)))
	assert.True(t, Open(o, r, time.Date(2026, 10, 20, 20, 59, 0, 0, time.UTC)))
	assert.False(t, Open(o, r, time.Date(2026, 10, 20, 21, 0, 0, 0, time.UTC)))
	assert.True(t, Expired(o, r, time.Date(2026, 10, 20, 21, 0, 0, 0, time.UTC)))

	active := &models.Order{Status: models.StatusPending, AllowChat: true}
	assert.True(t, Open(active, r, done.AddDate(1, 0, 0)))
	assert.False(t, Expired(active, r, done.AddDate(1, 0, 0)))

	disabled := &models.Order{Status: models.StatusPending}
	assert.False(t, Open(disabled, r, done))
}

func TestSummarize(t *testing.T) {
	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	msgs := []models.ChatMessage{
		{ID: "1", SenderRole: models.RoleOwner, Timestamp: base},
		{ID: "2", SenderRole: models.RoleCustomer, Timestamp: base.Add(time.Minute)},
		{ID: "3", SenderRole: models.RoleOwner, Timestamp: base.Add(2 * time.Minute)},
	}

	s := Summarize("o-1", msgs, models.RoleCustomer, nil)
	assert.Equal(t, 2, s.UnreadCount)
	require.NotNil(t, s.LastMessage)
	assert.Equal(t, "3", s.LastMessage.ID)

	cursor := base.Add(time.Minute)
	s = Summarize("o-1", msgs, models.RoleCustomer, &cursor)
	assert.Equal(t, 1, s.UnreadCount)

	s = Summarize("o-1", msgs, models.RoleOwner, &cursor)
	assert.Equal(t, 0, s.UnreadCount)

	empty := Summarize("o-2", nil, models.RoleOwner, nil)
	assert.Zero(t, empty.UnreadCount)
	assert.Nil(t, empty.LastMessage)
}

func TestLatestTimestamp(t *testing.T) {
	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	ts, ok := LatestTimestamp([]models.ChatMessage{{Timestamp: base.Add(time.Second)}, {Timestamp: base}})
	assert.True(t, ok)
	assert.Equal(t, base.Add(time.Second), ts)

	_, ok = LatestTimestamp(nil)
	assert.False(t, ok)
}
