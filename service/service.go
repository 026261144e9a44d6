// Package service runs the order operations end to end: it loads the order
// and restaurant inside a transaction, applies a transition from package
// orders, writes the resulting events and publishes lifecycle messages
// once the transaction has committed.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"food-order-service/apperr"
	"food-order-service/chat"
	"food-order-service/database"
	"food-order-service/delivery"
	"food-order-service/logger"
	"food-order-service/models"
	"food-order-service/orders"
	"food-order-service/pricing"
	"food-order-service/storage"
)

// Publisher sends order lifecycle events to the message bus.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, ev models.OrderEvent, priority uint8) error
	PublishDelayedEvent(ctx context.Context, ev models.OrderEvent, delay time.Duration) error
}

const (
	priorityDefault   = 5
	priorityCancelled = 8
	priorityLarge     = 9
	publishTimeout    = 5 * time.Second
)

var largeOrderTotal = decimal.NewFromInt(1000)

type OrderService struct {
	store        *database.Store
	calc         *delivery.Calculator
	resolver     storage.Resolver
	publisher    Publisher
	log          *logrus.Logger
	audit        *logrus.Logger
	now          func() time.Time
	newID        func() string
	pricingOpts  []pricing.Option
	onTransition func(from, to models.OrderStatus)
}

type Option func(*OrderService)

func WithPublisher(p Publisher) Option {
	return func(s *OrderService) { s.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *OrderService) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *OrderService) { s.newID = fn }
}

func WithLogger(log *logrus.Logger) Option {
	return func(s *OrderService) { s.log = log }
}

// WithPricingOptions configures every pricing engine the service creates.
func WithPricingOptions(opts ...pricing.Option) Option {
	return func(s *OrderService) { s.pricingOpts = append(s.pricingOpts, opts...) }
}

// WithTransitionHook is called after commit for every status change.
func WithTransitionHook(fn func(from, to models.OrderStatus)) Option {
	return func(s *OrderService) { s.onTransition = fn }
}

func New(store *database.Store, calc *delivery.Calculator, resolver storage.Resolver, opts ...Option) *OrderService {
	s := &OrderService{
		store:    store,
		calc:     calc,
		resolver: resolver,
		log:      logger.App(),
		audit:    logger.Audit(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OrderService) engine(q *database.Queries) *pricing.Engine {
	opts := append([]pricing.Option{pricing.WithClock(s.now)}, s.pricingOpts...)
	return pricing.NewEngine(q, q, opts...)
}

// result carries what a committed mutation needs for post-commit work.
type result struct {
	before     *models.Order
	order      *models.Order
	restaurant models.RestaurantConfig
	changed    bool
}

// mutateFunc computes the transition for o. It may read through q but must
// not write; writes happen in mutate.
type mutateFunc func(ctx context.Context, q *database.Queries, o *models.Order, r models.RestaurantConfig) (orders.Outcome, error)

// mutate runs fn on the locked order in one transaction and persists its
// outcome. A failing fn whose outcome is marked Changed is still committed
// and its error returned afterwards; that is how a refused chat message
// switches chat off.
func (s *OrderService) mutate(ctx context.Context, orderID string, fn mutateFunc) (result, error) {
	var (
		res   result
		opErr error
	)
	err := s.store.WithTx(ctx, func(q *database.Queries) error {
		r, err := q.GetRestaurant(ctx)
		if err != nil {
			return err
		}
		o, err := q.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		out, err := fn(ctx, q, o, r)
		if err != nil && !out.Changed {
			return err
		}
		opErr = err

		res = result{before: o, order: o, restaurant: r}
		if out.Changed {
			if err := q.UpdateOrder(ctx, out.Order); err != nil {
				return err
			}
			res.order = out.Order
			res.changed = true
		}
		return s.dispatch(ctx, q, out.Events)
	})
	if err != nil {
		return result{}, err
	}
	return res, opErr
}

// dispatch writes the side effects of a transition. Messages emitted by
// one transition keep their order even when they share a timestamp.
func (s *OrderService) dispatch(ctx context.Context, q *database.Queries, events []orders.Event) error {
	var last time.Time
	for _, ev := range events {
		switch e := ev.(type) {
		case orders.ChatEvent:
			m := e.Message
			if m.ID == "" {
				m.ID = s.newID()
			}
			if !m.Timestamp.After(last) && !last.IsZero() {
				m.Timestamp = last.Add(time.Microsecond)
			}
			last = m.Timestamp
			if err := q.InsertChatMessage(ctx, &m); err != nil {
				return err
			}
		case orders.AuditEvent:
			m := e.Modification
			if m.ID == "" {
				m.ID = s.newID()
			}
			if err := q.InsertModification(ctx, &m); err != nil {
				return err
			}
			s.audit.WithFields(logrus.Fields{
				"order_id": m.OrderID,
				"user_id":  m.ModifiedBy,
				"type":     m.ModificationType,
			}).Info(m.ItemDetails)
		default:
			return apperr.E(apperr.Internal, "unhandled event %T", ev)
		}
	}
	return nil
}

func (s *OrderService) publish(ctx context.Context, o *models.Order, typ string, priority uint8) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	ev := orderEvent(o, typ, s.now())
	if err := s.publisher.PublishOrderEvent(ctx, ev, priority); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"order_id": o.ID, "type": typ}).Warn("publish order event failed")
	}
}

// scheduleChatClose asks the bus to close the chat of a finalized order
// once its grace period is over.
func (s *OrderService) scheduleChatClose(ctx context.Context, o *models.Order, r models.RestaurantConfig) {
	if s.publisher == nil || o.FinalizedAt == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	now := s.now()
	delay := chat.GraceDeadline(*o.FinalizedAt, r).Sub(now) + time.Second
	if delay < time.Second {
		delay = time.Second
	}
	ev := orderEvent(o, models.EventChatClose, now)
	if err := s.publisher.PublishDelayedEvent(ctx, ev, delay); err != nil {
		s.log.WithError(err).WithField("order_id", o.ID).Warn("schedule chat close failed")
	}
}

func orderEvent(o *models.Order, typ string, now time.Time) models.OrderEvent {
	return models.OrderEvent{
		OrderID:  o.ID,
		UserID:   o.CustomerID,
		Type:     typ,
		Status:   o.Status,
		Total:    o.Total.StringFixed(2),
		Occurred: now,
	}
}

// canView allows the owner and the order's customer.
func canView(actor orders.Actor, o *models.Order) error {
	switch actor.Role {
	case models.RoleOwner:
		return nil
	case models.RoleCustomer:
		if o.CustomerID == actor.ID {
			return nil
		}
	}
	return apperr.E(apperr.Unauthorized, "not your order")
}
