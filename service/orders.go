package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"food-order-service/apperr"
	"food-order-service/chat"
	"food-order-service/database"
	"food-order-service/delivery"
	"food-order-service/models"
	"food-order-service/orders"
	"food-order-service/pricing"
)

// CreateOrderRequest is the customer's checkout payload. The embedded
// claims are what the client displayed; they are verified, never stored.
type CreateOrderRequest struct {
	OrderType           models.OrderType      `json:"order_type" binding:"required,order_type"`
	PreOrderFulfillment models.Fulfillment    `json:"pre_order_fulfillment"`
	PreOrderScheduledAt *time.Time            `json:"pre_order_scheduled_at"`
	Items               []pricing.LineRequest `json:"items" binding:"required,min=1,dive"`
	VoucherCode         string                `json:"voucher_code"`
	pricing.Claims

	PaymentPlan            models.PaymentPlan `json:"payment_plan"`
	PaymentProof           string             `json:"payment_proof"`
	DownpaymentAmount      decimal.Decimal    `json:"downpayment_amount"`
	DownpaymentProof       string             `json:"downpayment_proof"`
	RemainingPaymentMethod string             `json:"remaining_payment_method"`

	CustomerName        string              `json:"customer_name"`
	CustomerGcashNumber string              `json:"customer_gcash_number"`
	CustomerAddress     string              `json:"customer_address"`
	CustomerCoordinates *models.Coordinates `json:"customer_coordinates"`
}

// CreateOrder prices and stores a new order. Nothing is written, and no
// voucher use is counted, unless every check passes.
func (s *OrderService) CreateOrder(ctx context.Context, actor orders.Actor, req CreateOrderRequest) (*models.Order, error) {
	if actor.Role != models.RoleCustomer || actor.ID == "" {
		return nil, apperr.E(apperr.Unauthorized, "only customers can place orders")
	}
	r, err := s.store.Queries().GetRestaurant(ctx)
	if err != nil {
		return nil, err
	}
	if !r.AllowNewOrders {
		return nil, apperr.E(apperr.OrdersClosed, "the restaurant is not accepting orders right now")
	}

	now := s.now()
	draft, err := s.draftOrder(actor, req, r, now)
	if err != nil {
		return nil, err
	}

	// Routing and storage calls happen before the transaction opens.
	var quote *delivery.Quote
	if draft.NeedsDelivery() {
		clientFee := decimal.NewNullDecimal(req.DeliveryFee)
		q, err := s.calc.Quote(ctx, r, *draft.CustomerCoordinates, clientFee)
		if err != nil {
			return nil, err
		}
		quote = &q
		draft.DistanceMeters = q.DistanceMeters
		draft.DeliveryFeeFallback = q.Fallback
	}
	if err := s.resolveProofs(ctx, draft, req); err != nil {
		return nil, err
	}

	var placed *models.Order
	err = s.store.WithTx(ctx, func(q *database.Queries) error {
		pq, err := s.engine(q).Price(ctx, r, pricing.Candidate{
			Lines:       req.Items,
			VoucherCode: req.VoucherCode,
			Claims:      req.Claims,
			Delivery:    quote,
		})
		if err != nil {
			return err
		}
		draft.Items = pq.Items
		draft.Subtotal = pq.Subtotal
		draft.PlatformFee = pq.PlatformFee
		draft.DeliveryFee = pq.DeliveryFee
		draft.Discount = pq.Discount
		draft.Total = pq.Total
		if pq.Voucher != nil {
			draft.VoucherCode = pq.Voucher.Code
		}
		if draft.PaymentPlan == models.PaymentDownpayment &&
			(!draft.DownpaymentAmount.IsPositive() || !draft.DownpaymentAmount.LessThan(draft.Total)) {
			return apperr.E(apperr.InvalidRequest, "downpayment must be more than zero and less than the total")
		}

		out := orders.Place(draft, r, now)
		if err := q.InsertOrder(ctx, out.Order); err != nil {
			return err
		}
		placed = out.Order
		return s.dispatch(ctx, q, out.Events)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id": placed.ID,
		"user_id":  placed.CustomerID,
		"status":   placed.Status,
		"total":    placed.Total.StringFixed(2),
	}).Info("order created")

	priority := uint8(priorityDefault)
	if placed.Total.GreaterThan(largeOrderTotal) {
		priority = priorityLarge
	}
	s.publish(ctx, placed, models.EventCreated, priority)
	return placed, nil
}

// draftOrder validates the non-monetary part of the request.
func (s *OrderService) draftOrder(actor orders.Actor, req CreateOrderRequest, r models.RestaurantConfig, now time.Time) (*models.Order, error) {
	if !req.OrderType.Valid() {
		return nil, apperr.E(apperr.InvalidRequest, "unknown order type %q", req.OrderType)
	}
	o := &models.Order{
		ID:                     s.newID(),
		CustomerID:             actor.ID,
		CustomerName:           chat.StripTags(req.CustomerName),
		CustomerGcashNumber:    chat.StripTags(req.CustomerGcashNumber),
		OrderType:              req.OrderType,
		PaymentPlan:            req.PaymentPlan,
		DownpaymentAmount:      req.DownpaymentAmount.Round(2),
		RemainingPaymentMethod: chat.StripTags(req.RemainingPaymentMethod),
	}
	if o.CustomerName == "" {
		o.CustomerName = actor.Name
	}

	if o.IsPreOrder() {
		switch req.PreOrderFulfillment {
		case models.FulfillmentPickup, models.FulfillmentDelivery:
			o.PreOrderFulfillment = req.PreOrderFulfillment
		default:
			return nil, apperr.E(apperr.InvalidRequest, "pre-orders need a pickup or delivery fulfillment")
		}
		if req.PreOrderScheduledAt == nil || !req.PreOrderScheduledAt.After(now) {
			return nil, apperr.E(apperr.InvalidRequest, "pre-orders need a scheduled time in the future")
		}
		at := req.PreOrderScheduledAt.UTC()
		o.PreOrderScheduledAt = &at
	}

	if o.NeedsDelivery() {
		if !r.AllowDelivery {
			return nil, apperr.E(apperr.DeliveryUnavailable, "delivery is not available right now")
		}
		if req.CustomerCoordinates == nil {
			return nil, apperr.E(apperr.InvalidCoordinates, "delivery orders need coordinates")
		}
		if err := delivery.ValidateCoordinates(*req.CustomerCoordinates); err != nil {
			return nil, err
		}
		if strings.TrimSpace(req.CustomerAddress) == "" {
			return nil, apperr.E(apperr.InvalidRequest, "delivery orders need an address")
		}
		c := *req.CustomerCoordinates
		o.CustomerCoordinates = &c
		o.CustomerAddress = strings.TrimSpace(req.CustomerAddress)
	}

	switch o.PaymentPlan {
	case "":
		o.PaymentPlan = models.PaymentFull
	case models.PaymentFull, models.PaymentDownpayment:
	default:
		return nil, apperr.E(apperr.InvalidRequest, "unknown payment plan %q", o.PaymentPlan)
	}
	if o.PaymentPlan == models.PaymentDownpayment && !o.IsPreOrder() {
		return nil, apperr.E(apperr.InvalidRequest, "downpayments are only available for pre-orders")
	}
	if o.PaymentPlan == models.PaymentFull {
		o.DownpaymentAmount = decimal.Zero
		o.RemainingPaymentMethod = ""
	}
	return o, nil
}

// resolveProofs turns uploaded references into URLs. Dine-in orders are
// paid at the counter and need no proof.
func (s *OrderService) resolveProofs(ctx context.Context, o *models.Order, req CreateOrderRequest) error {
	switch o.PaymentPlan {
	case models.PaymentDownpayment:
		u, err := s.resolver.ResolveToURL(ctx, req.DownpaymentProof)
		if err != nil {
			return err
		}
		o.DownpaymentProofURL = u
	default:
		if o.OrderType == models.OrderTypeDineIn && strings.TrimSpace(req.PaymentProof) == "" {
			return nil
		}
		u, err := s.resolver.ResolveToURL(ctx, req.PaymentProof)
		if err != nil {
			return err
		}
		o.PaymentProofURL = u
	}
	return nil
}

// ItemEdit is one line of an owner's item edit. UnitPrice overrides the
// catalog price when set.
type ItemEdit struct {
	pricing.LineRequest
	UnitPrice decimal.NullDecimal `json:"unit_price"`
}

type ItemsUpdate struct {
	Items            []ItemEdit              `json:"items" binding:"required,min=1,dive"`
	ModificationType models.ModificationType `json:"modification_type"`
	Note             string                  `json:"note"`
}

type ScheduleUpdate struct {
	// ScheduledAt nil removes the schedule.
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// StatusUpdate may bundle item and schedule edits with the status change;
// they are applied first, in the same transaction.
type StatusUpdate struct {
	Status       models.OrderStatus `json:"status" binding:"required,order_status"`
	DenialReason string             `json:"denial_reason"`
	Items        *ItemsUpdate       `json:"items,omitempty"`
	Schedule     *ScheduleUpdate    `json:"schedule,omitempty"`
}

// chain folds consecutive transitions into one outcome.
type chain struct {
	out orders.Outcome
}

func (c *chain) apply(next orders.Outcome) {
	if next.Changed {
		c.out.Order = next.Order
		c.out.Changed = true
	}
	c.out.Events = append(c.out.Events, next.Events...)
}

func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor orders.Actor, orderID string, u StatusUpdate) (*models.Order, error) {
	res, err := s.mutate(ctx, orderID, func(ctx context.Context, q *database.Queries, o *models.Order, r models.RestaurantConfig) (orders.Outcome, error) {
		c := chain{out: orders.Outcome{Order: o}}
		now := s.now()
		if u.Items != nil {
			out, err := s.editItems(ctx, q, c.out.Order, actor, *u.Items, r, now)
			if err != nil {
				return orders.Outcome{}, err
			}
			c.apply(out)
		}
		if u.Schedule != nil {
			out, err := orders.EditSchedule(c.out.Order, actor, u.Schedule.ScheduledAt, r, now)
			if err != nil {
				return orders.Outcome{}, err
			}
			c.apply(out)
		}
		out, err := orders.ChangeStatus(c.out.Order, actor, u.Status,
			orders.StatusExtras{DenialReason: strings.TrimSpace(u.DenialReason)}, r, now)
		if err != nil {
			return orders.Outcome{}, err
		}
		c.apply(out)
		return c.out, nil
	})
	if err != nil {
		return nil, err
	}
	s.afterStatusChange(ctx, actor, res)
	return res.order, nil
}

func (s *OrderService) afterStatusChange(ctx context.Context, actor orders.Actor, res result) {
	if !res.changed {
		return
	}
	from, to := res.before.Status, res.order.Status
	if from == to {
		s.publish(ctx, res.order, models.EventItemsUpdated, priorityDefault)
		return
	}
	s.log.WithFields(logrus.Fields{
		"order_id": res.order.ID,
		"user_id":  actor.ID,
		"from":     from,
		"status":   to,
	}).Info("order status changed")
	if s.onTransition != nil {
		s.onTransition(from, to)
	}
	priority := uint8(priorityDefault)
	if to == models.StatusCancelled {
		priority = priorityCancelled
	}
	s.publish(ctx, res.order, models.EventStatusUpdated, priority)
	if to.Final() {
		s.scheduleChatClose(ctx, res.order, res.restaurant)
	}
}

func (s *OrderService) UpdateOrderItems(ctx context.Context, actor orders.Actor, orderID string, u ItemsUpdate) (*models.Order, error) {
	res, err := s.mutate(ctx, orderID, func(ctx context.Context, q *database.Queries, o *models.Order, r models.RestaurantConfig) (orders.Outcome, error) {
		return s.editItems(ctx, q, o, actor, u, r, s.now())
	})
	if err != nil {
		return nil, err
	}
	if res.changed {
		s.publish(ctx, res.order, models.EventItemsUpdated, priorityDefault)
	}
	return res.order, nil
}

// editItems resolves the edited lines and applies them. Lines already on
// the order keep their stored snapshot, so catalog changes since checkout
// do not reprice them; new lines are priced from the catalog.
func (s *OrderService) editItems(ctx context.Context, q *database.Queries, o *models.Order, actor orders.Actor, u ItemsUpdate, r models.RestaurantConfig, now time.Time) (orders.Outcome, error) {
	if err := orders.CheckItemsEditable(o, actor); err != nil {
		return orders.Outcome{}, err
	}

	existing := make(map[string]models.OrderItem, len(o.Items))
	for _, it := range o.Items {
		existing[orders.LineKey(it)] = it
	}

	engine := s.engine(q)
	items := make([]models.OrderItem, 0, len(u.Items))
	for _, e := range u.Items {
		if e.Quantity <= 0 {
			return orders.Outcome{}, apperr.E(apperr.InvalidQuantity, "quantity must be positive")
		}
		var it models.OrderItem
		if prev, ok := existing[orders.LineKey(lineProbe(e.LineRequest))]; ok {
			it = prev.Clone()
			it.Quantity = e.Quantity
		} else {
			priced, err := engine.PriceLine(ctx, e.LineRequest)
			if err != nil {
				return orders.Outcome{}, err
			}
			it = priced
		}
		if e.UnitPrice.Valid {
			it.UnitPrice = e.UnitPrice.Decimal
		}
		items = append(items, it)
	}
	return orders.EditItems(o, actor, items, u.ModificationType, u.Note, r, now)
}

// lineProbe builds an item carrying just the fields LineKey reads.
func lineProbe(l pricing.LineRequest) models.OrderItem {
	it := models.OrderItem{MenuItemID: l.MenuItemID, VariantID: l.VariantID}
	for _, c := range l.Choices {
		it.SelectedChoices = append(it.SelectedChoices, models.SelectedChoice{GroupID: c.GroupID, ChoiceID: c.ChoiceID})
	}
	return it
}

func (s *OrderService) UpdateSchedule(ctx context.Context, actor orders.Actor, orderID string, u ScheduleUpdate) (*models.Order, error) {
	res, err := s.mutate(ctx, orderID, func(ctx context.Context, q *database.Queries, o *models.Order, r models.RestaurantConfig) (orders.Outcome, error) {
		return orders.EditSchedule(o, actor, u.ScheduledAt, r, s.now())
	})
	if err != nil {
		return nil, err
	}
	return res.order, nil
}

type SettingsUpdate struct {
	AllowChat           *bool `json:"allow_chat"`
	AllowCustomerImages *bool `json:"allow_customer_images"`
}

func (s *OrderService) UpdateSettings(ctx context.Context, actor orders.Actor, orderID string, u SettingsUpdate) (*models.Order, error) {
	res, err := s.mutate(ctx, orderID, func(ctx context.Context, q *database.Queries, o *models.Order, r models.RestaurantConfig) (orders.Outcome, error) {
		return orders.UpdateSettings(o, actor, orders.Settings{
			AllowChat:           u.AllowChat,
			AllowCustomerImages: u.AllowCustomerImages,
		}, s.now())
	})
	if err != nil {
		return nil, err
	}
	return res.order, nil
}

// SubmitRemainingPayment stores the customer's proof for the balance of a
// downpayment order. proofRef is an object-storage reference.
func (s *OrderService) SubmitRemainingPayment(ctx context.Context, actor orders.Actor, orderID, proofRef string) (*models.Order, error) {
	if actor.Role != models.RoleCustomer {
		return nil, apperr.E(apperr.Unauthorized, "only the customer can upload payment proof")
	}
	proofURL, err := s.resolver.ResolveToURL(ctx, proofRef)
	if err != nil {
		return nil, err
	}
	res, err := s.mutate(ctx, orderID, func(ctx context.Context, q *database.Queries, o *models.Order, r models.RestaurantConfig) (orders.Outcome, error) {
		return orders.SubmitRemainingPayment(o, actor, proofURL, s.now())
	})
	if err != nil {
		return nil, err
	}
	return res.order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, actor orders.Actor, orderID string) (*models.Order, error) {
	o, err := s.store.Queries().GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := canView(actor, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrders returns the customer's own orders, or any orders for the owner.
func (s *OrderService) ListOrders(ctx context.Context, actor orders.Actor, f database.OrderFilter) ([]*models.Order, error) {
	switch actor.Role {
	case models.RoleOwner:
	case models.RoleCustomer:
		f.CustomerID = actor.ID
	default:
		return nil, apperr.E(apperr.Unauthorized, "unknown role")
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.E(apperr.InvalidRequest, "unknown status %q", f.Status)
	}
	list, err := s.store.Queries().ListOrders(ctx, f)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*models.Order{}
	}
	return list, nil
}

// ListModifications is the owner-facing history of an order.
func (s *OrderService) ListModifications(ctx context.Context, actor orders.Actor, orderID string) ([]models.OrderModification, error) {
	if !actor.IsOwner() {
		return nil, apperr.E(apperr.Unauthorized, "only the restaurant can view order history")
	}
	q := s.store.Queries()
	if _, err := q.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return q.ListModifications(ctx, orderID)
}
