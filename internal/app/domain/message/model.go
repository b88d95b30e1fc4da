package message

import "time"

// PrivateMessage is a direct message exchanged inside a request's thread.
// A conversation is identified by the request id plus the unordered pair of
// participants.
type PrivateMessage struct {
	ID         string
	RequestID  string
	SenderID   string
	ReceiverID string
	Content    string
	IsRead     bool
	CreatedAt  time.Time
}

// ConversationSummary describes one conversation from the point of view of
// a particular user: the counterpart, the latest message and how many
// messages addressed to that user are still unread.
type ConversationSummary struct {
	RequestID     string
	OtherUserID   string
	OtherUserName string
	LastMessage   string
	LastMessageAt time.Time
	UnreadCount   int
}
