package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"food-order-service/apperr"
	"food-order-service/chat"
	"food-order-service/database"
	"food-order-service/models"
	"food-order-service/orders"
)

// SendChatMessage posts a human message to the order's thread. imageRef is
// an optional object-storage reference.
func (s *OrderService) SendChatMessage(ctx context.Context, actor orders.Actor, orderID, text, imageRef string) (*models.ChatMessage, error) {
	imageURL := ""
	if ref := strings.TrimSpace(imageRef); ref != "" {
		u, err := s.resolver.ResolveToURL(ctx, ref)
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidRequest, err, "invalid image")
		}
		imageURL = u
	}

	var sent *models.ChatMessage
	res, err := s.mutate(ctx, orderID, func(ctx context.Context, q *database.Queries, o *models.Order, r models.RestaurantConfig) (orders.Outcome, error) {
		out, err := orders.PostMessage(o, actor, text, imageURL, r, s.now())
		if err != nil {
			return out, err
		}
		for i, ev := range out.Events {
			if ce, ok := ev.(orders.ChatEvent); ok {
				ce.Message.ID = s.newID()
				out.Events[i] = ce
				sent = &ce.Message
			}
		}
		return out, nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.ChatDisabled && res.changed {
			s.log.WithField("order_id", orderID).Info("chat closed after grace period")
		}
		return nil, err
	}
	return sent, nil
}

func (s *OrderService) ListMessages(ctx context.Context, actor orders.Actor, orderID string) ([]models.ChatMessage, error) {
	q := s.store.Queries()
	o, err := q.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := canView(actor, o); err != nil {
		return nil, err
	}
	return q.ListChatMessages(ctx, orderID)
}

// MarkRead moves the actor's read cursor to the newest message of the
// order. It returns nil when the thread is empty.
func (s *OrderService) MarkRead(ctx context.Context, actor orders.Actor, orderID string) (*models.ReadCursor, error) {
	var cursor *models.ReadCursor
	err := s.store.WithTx(ctx, func(q *database.Queries) error {
		o, err := q.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := canView(actor, o); err != nil {
			return err
		}
		msgs, err := q.ListChatMessages(ctx, orderID)
		if err != nil {
			return err
		}
		latest, ok := chat.LatestTimestamp(msgs)
		if !ok {
			return nil
		}
		cursor, err = q.AdvanceReadCursor(ctx, orderID, actor.ID, latest)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

// UnreadSummaries reports, per order, how many messages from the other
// party the actor has not read yet.
func (s *OrderService) UnreadSummaries(ctx context.Context, actor orders.Actor, orderIDs []string) ([]models.UnreadSummary, error) {
	ids := dedupe(orderIDs)
	q := s.store.Queries()
	for _, id := range ids {
		o, err := q.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := canView(actor, o); err != nil {
			return nil, err
		}
	}

	msgs, err := q.ListChatMessagesForOrders(ctx, ids)
	if err != nil {
		return nil, err
	}
	cursors, err := q.ListReadCursors(ctx, actor.ID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.UnreadSummary, 0, len(ids))
	for _, id := range ids {
		var cursor *time.Time
		if t, ok := cursors[id]; ok {
			cursor = &t
		}
		out = append(out, chat.Summarize(id, msgs[id], actor.Role, cursor))
	}
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// CloseExpiredChat switches chat off for orderID when its grace period is
// over. It reports whether anything changed.
func (s *OrderService) CloseExpiredChat(ctx context.Context, orderID string) (bool, error) {
	res, err := s.mutate(ctx, orderID, func(ctx context.Context, q *database.Queries, o *models.Order, r models.RestaurantConfig) (orders.Outcome, error) {
		out, _ := orders.CloseExpiredChat(o, r, s.now())
		return out, nil
	})
	if err != nil {
		return false, err
	}
	if res.changed {
		s.log.WithField("order_id", orderID).Info("chat closed after grace period")
	}
	return res.changed, nil
}

// SweepExpiredChats closes every chat whose grace period is over and
// returns how many were closed.
func (s *OrderService) SweepExpiredChats(ctx context.Context) (int, error) {
	ids, err := s.store.Queries().ListOrderIDsWithOpenChat(ctx)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, id := range ids {
		ok, err := s.CloseExpiredChat(ctx, id)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"order_id": id}).Warn("close expired chat failed")
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}
