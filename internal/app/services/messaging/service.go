// Package messaging implements request-scoped private messaging between a
// request owner and a responder, plus the notification inbox operations.
package messaging

import (
	"context"
	"fmt"

	"github.com/helphub/platform/internal/app/domain/message"
	"github.com/helphub/platform/internal/app/domain/notification"
	"github.com/helphub/platform/internal/app/metrics"
	"github.com/helphub/platform/internal/app/storage"
	"github.com/helphub/platform/pkg/logger"
)

// Service handles private messages and notifications.
type Service struct {
	requests      storage.RequestStore
	messages      storage.MessageStore
	notifications storage.NotificationStore
	log           *logger.Logger
}

// New constructs the service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("messaging")
	}
	return &Service{
		requests:      store,
		messages:      store,
		notifications: store,
		log:           log,
	}
}

// Send records a private message in a request's conversation and notifies
// the receiver.
func (s *Service) Send(ctx context.Context, requestID, senderID, receiverID, content string) (message.PrivateMessage, error) {
	if content == "" {
		return message.PrivateMessage{}, fmt.Errorf("content is required")
	}
	if senderID == receiverID {
		return message.PrivateMessage{}, fmt.Errorf("sender and receiver are the same user: %w", storage.ErrInvalidState)
	}
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return message.PrivateMessage{}, fmt.Errorf("load request: %w", err)
	}

	created, err := s.messages.CreateMessage(ctx, message.PrivateMessage{
		RequestID:  requestID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	})
	metrics.RecordStorageOp("create_message", err)
	if err != nil {
		return message.PrivateMessage{}, err
	}

	if _, err := s.notifications.CreateNotification(ctx, notification.Notification{
		UserID:       receiverID,
		Type:         notification.TypeNewMessage,
		Title:        "New private message",
		Message:      req.Title,
		EntityType:   "request",
		EntityID:     requestID,
		ActionUserID: senderID,
	}); err != nil {
		s.log.WithError(err).Warnf("notification fan-out to user %s failed", receiverID)
	} else {
		metrics.RecordNotification(notification.TypeNewMessage)
	}
	return created, nil
}

// Conversation returns the messages exchanged between two users on a
// request, oldest first.
func (s *Service) Conversation(ctx context.Context, requestID, userA, userB string) ([]message.PrivateMessage, error) {
	return s.messages.ListConversation(ctx, requestID, userA, userB)
}

// Conversations returns one summary per (request, counterpart) pair the
// user participates in, newest activity first.
func (s *Service) Conversations(ctx context.Context, userID string) ([]message.ConversationSummary, error) {
	return s.messages.ListConversationsForUser(ctx, userID)
}

// MarkRead marks a single message read. Only the receiver's call has an
// effect.
func (s *Service) MarkRead(ctx context.Context, messageID, userID string) error {
	return s.messages.MarkMessageRead(ctx, messageID, userID)
}

// Notifications returns the user's most recent notifications.
func (s *Service) Notifications(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	return s.notifications.ListNotifications(ctx, userID, limit)
}

// UnreadCount returns how many notifications the user has not read.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.notifications.UnreadNotificationCount(ctx, userID)
}

// MarkNotificationRead marks one of the user's notifications read.
func (s *Service) MarkNotificationRead(ctx context.Context, id, userID string) error {
	return s.notifications.MarkNotificationRead(ctx, id, userID)
}

// MarkAllNotificationsRead marks every notification of the user read.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return s.notifications.MarkAllNotificationsRead(ctx, userID)
}
