package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPreOrderPending OrderStatus = "pre-order-pending"
	StatusPending         OrderStatus = "pending"
	StatusAccepted        OrderStatus = "accepted"
	StatusReady           OrderStatus = "ready"
	StatusInTransit       OrderStatus = "in-transit"
	StatusDelivered       OrderStatus = "delivered"
	StatusDenied          OrderStatus = "denied"
	StatusCompleted       OrderStatus = "completed"
	StatusCancelled       OrderStatus = "cancelled"
)

var AllStatuses = []OrderStatus{
	StatusPreOrderPending, StatusPending, StatusAccepted, StatusReady,
	StatusInTransit, StatusDelivered, StatusDenied, StatusCompleted, StatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Final statuses freeze the order: no further status change or item edit.
func (s OrderStatus) Final() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusDelivered
}

type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine-in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDelivery OrderType = "delivery"
	OrderTypePreOrder OrderType = "pre-order"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery, OrderTypePreOrder:
		return true
	}
	return false
}

type Fulfillment string

const (
	FulfillmentPickup   Fulfillment = "pickup"
	FulfillmentDelivery Fulfillment = "delivery"
)

type PaymentPlan string

const (
	PaymentFull        PaymentPlan = "full"
	PaymentDownpayment PaymentPlan = "downpayment"
)

type Role string

const (
	RoleOwner    Role = "owner"
	RoleCustomer Role = "customer"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Order struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	CustomerName        string `json:"customer_name"`
	CustomerGcashNumber string `json:"customer_gcash_number,omitempty"`

	OrderType           OrderType   `json:"order_type"`
	PreOrderFulfillment Fulfillment `json:"pre_order_fulfillment,omitempty"`
	PreOrderScheduledAt *time.Time  `json:"pre_order_scheduled_at,omitempty"`

	Status       OrderStatus `json:"status"`
	DenialReason string      `json:"denial_reason,omitempty"`
	AcceptedAt   *time.Time  `json:"accepted_at,omitempty"`
	FinalizedAt  *time.Time  `json:"finalized_at,omitempty"`

	Items []OrderItem `json:"items"`

	Subtotal    decimal.Decimal `json:"subtotal"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
	VoucherCode string          `json:"voucher_code,omitempty"`

	PaymentPlan              PaymentPlan     `json:"payment_plan"`
	PaymentProofURL          string          `json:"payment_proof_url,omitempty"`
	DownpaymentAmount        decimal.Decimal `json:"downpayment_amount"`
	DownpaymentProofURL      string          `json:"downpayment_proof_url,omitempty"`
	RemainingPaymentMethod   string          `json:"remaining_payment_method,omitempty"`
	RemainingPaymentProofURL string          `json:"remaining_payment_proof_url,omitempty"`

	CustomerAddress     string       `json:"customer_address,omitempty"`
	CustomerCoordinates *Coordinates `json:"customer_coordinates,omitempty"`
	DistanceMeters      *float64     `json:"distance_meters,omitempty"`
	DeliveryFeeFallback bool         `json:"delivery_fee_fallback"`

	AllowChat           bool `json:"allow_chat"`
	AllowCustomerImages bool `json:"allow_customer_images"`
}

// IsPreOrder reports whether the order was placed for future fulfillment.
func (o *Order) IsPreOrder() bool { return o.OrderType == OrderTypePreOrder }

// NeedsDelivery reports whether a delivery fee applies.
func (o *Order) NeedsDelivery() bool {
	return o.OrderType == OrderTypeDelivery ||
		(o.OrderType == OrderTypePreOrder && o.PreOrderFulfillment == FulfillmentDelivery)
}

// Clone returns a deep copy so transition functions never alias the caller's
// slices or pointers.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]OrderItem, len(o.Items))
	for i, it := range o.Items {
		c.Items[i] = it.Clone()
	}
	if o.PreOrderScheduledAt != nil {
		t := *o.PreOrderScheduledAt
		c.PreOrderScheduledAt = &t
	}
	if o.AcceptedAt != nil {
		t := *o.AcceptedAt
		c.AcceptedAt = &t
	}
	if o.FinalizedAt != nil {
		t := *o.FinalizedAt
		c.FinalizedAt = &t
	}
	if o.CustomerCoordinates != nil {
		p := *o.CustomerCoordinates
		c.CustomerCoordinates = &p
	}
	if o.DistanceMeters != nil {
		d := *o.DistanceMeters
		c.DistanceMeters = &d
	}
	return &c
}

// RecomputeTotal applies total = subtotal + platformFee + deliveryFee - discount.
func (o *Order) RecomputeTotal() {
	o.Total = o.Subtotal.Add(o.PlatformFee).Add(o.DeliveryFee).Sub(o.Discount).Round(2)
}

type SelectedChoice struct {
	GroupID   string          `json:"group_id"`
	GroupName string          `json:"group_name"`
	ChoiceID  string          `json:"choice_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
}

type BundleItem struct {
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

type OrderItem struct {
	MenuItemID      string           `json:"menu_item_id"`
	Name            string           `json:"name"`
	Quantity        int              `json:"quantity"`
	VariantID       string           `json:"variant_id,omitempty"`
	VariantName     string           `json:"variant_name,omitempty"`
	SelectedChoices []SelectedChoice `json:"selected_choices,omitempty"`
	BundleItems     []BundleItem     `json:"bundle_items,omitempty"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	Price           decimal.Decimal  `json:"price"`
}

func (it OrderItem) Clone() OrderItem {
	c := it
	c.SelectedChoices = append([]SelectedChoice(nil), it.SelectedChoices...)
	c.BundleItems = append([]BundleItem(nil), it.BundleItems...)
	return c
}

// DisplayName is the name shown in summaries, including the variant.
func (it OrderItem) DisplayName() string {
	if it.VariantName != "" {
		return it.Name + " (" + it.VariantName + ")"
	}
	return it.Name
}

type OrderEvent struct {
	OrderID  string      `json:"order_id"`
	UserID   string      `json:"user_id"`
	Type     string      `json:"type"` // created, status_updated, items_updated, chat_close
	Status   OrderStatus `json:"status"`
	Total    string      `json:"total"`
	Occurred time.Time   `json:"occurred"`
}

const (
	EventCreated       = "created"
	EventStatusUpdated = "status_updated"
	EventItemsUpdated  = "items_updated"
	EventChatClose     = "chat_close"
)
