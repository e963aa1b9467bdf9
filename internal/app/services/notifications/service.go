// Package notifications manages the per-user notification feed.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/notification"
	"github.com/OpinNetwork/engage_layer/internal/app/storage"
	"github.com/OpinNetwork/engage_layer/pkg/logger"
)

// Service persists and lists notifications. Delivery failures are the
// caller's choice to ignore: notifications are advisory.
type Service struct {
	store storage.NotificationStore
	log   *logger.Logger
}

// New constructs the service.
func New(store storage.NotificationStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notifications")
	}
	return &Service{store: store, log: log}
}

// Notify creates a notification for the user. Missing ids and timestamps are
// filled in.
func (s *Service) Notify(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.FromUserID == "" {
		n.FromUserID = notification.SystemSender
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	created, err := s.store.CreateNotification(ctx, n)
	if err != nil {
		return notification.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	return created, nil
}

// NotifyBestEffort creates a notification and logs instead of failing.
// Mutations that already happened must not be rolled back over a missed
// notification.
func (s *Service) NotifyBestEffort(ctx context.Context, n notification.Notification) {
	if _, err := s.Notify(ctx, n); err != nil {
		s.log.WithError(err).WithField("user_id", n.UserID).Warn("notification dropped")
	}
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]notification.Notification, error) {
	return s.store.ListNotifications(ctx, userID)
}

// MarkRead flips the read flag on one notification.
func (s *Service) MarkRead(ctx context.Context, id string) (notification.Notification, error) {
	return s.store.MarkNotificationRead(ctx, id)
}

// MarkAllRead flips the read flag on every unread notification for the user
// and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.store.MarkAllNotificationsRead(ctx, userID)
}
