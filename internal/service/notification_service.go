package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/repower/internal/model"
	"github.com/freeeve/repower/internal/repository"
)

// NotificationService stores player notifications and pushes them to any
// connected client of the player.
type NotificationService struct {
	repo        repository.NotificationRepository
	broadcaster Broadcaster
}

// NewNotificationService creates a NotificationService.
func NewNotificationService(repo repository.NotificationRepository, broadcaster Broadcaster) *NotificationService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &NotificationService{repo: repo, broadcaster: broadcaster}
}

// Notify implements Notifier. Failures are logged and dropped.
func (s *NotificationService) Notify(ctx context.Context, playerID, text, reference string) {
	n, err := s.repo.Create(ctx, playerID, text, reference)
	if err != nil {
		log.Error().Err(err).Str("playerId", playerID).Str("reference", reference).Msg("Failed to store notification")
		return
	}
	s.broadcaster.BroadcastUserEvent(playerID, "notification", n)
}

// List returns the latest notifications of userID.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly)
}

// MarkAllRead flags every notification of userID as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
