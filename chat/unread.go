package chat

import (
	"time"

	"food-order-service/models"
)

// Summarize counts the messages in a thread that viewer has not read yet.
// Only messages from the other role count. A nil cursor means nothing has
// been read. messages must be in ascending timestamp order.
func Summarize(orderID string, messages []models.ChatMessage, viewer models.Role, cursor *time.Time) models.UnreadSummary {
	s := models.UnreadSummary{OrderID: orderID}
	for i := range messages {
		m := messages[i]
		if m.SenderRole == viewer {
			continue
		}
		if cursor == nil || m.Timestamp.After(*cursor) {
			s.UnreadCount++
		}
	}
	if n := len(messages); n > 0 {
		last := messages[n-1]
		s.LastMessage = &last
	}
	return s
}

// LatestTimestamp is the cursor value used when marking a thread read. It
// is the newest message's time rather than the wall clock, so a message
// landing during the mark-read call stays unread.
func LatestTimestamp(messages []models.ChatMessage) (time.Time, bool) {
	var latest time.Time
	for _, m := range messages {
		if m.Timestamp.After(latest) {
			latest = m.Timestamp
		}
	}
	return latest, !latest.IsZero()
}
