package models

import "time"

type ChatMessage struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	SenderRole Role      `json:"sender_role"`
	Message    string    `json:"message"`
	ImageURL   string    `json:"image_url,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type ReadCursor struct {
	OrderID           string    `json:"order_id"`
	UserID            string    `json:"user_id"`
	LastReadTimestamp time.Time `json:"last_read_timestamp"`
}

type UnreadSummary struct {
	OrderID     string       `json:"order_id"`
	UnreadCount int          `json:"unread_count"`
	LastMessage *ChatMessage `json:"last_message,omitempty"`
}
