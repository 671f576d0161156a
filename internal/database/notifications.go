package database

import (
	"context"
	"fmt"

	"deposit-reconciler-go/internal/models"

	"github.com/google/uuid"
)

func (s *Service) CreateNotification(ctx context.Context, n models.Notification) error {
	if n.Id == "" {
		n.Id = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	if n.Data == "" {
		n.Data = "{}"
	}

	_, err := s.db.ExecContext(ctx, s.rebind(queryInsertNotification),
		n.Id, n.UserId, n.Type, n.Title, n.Message, n.Data, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *Service) ListNotifications(ctx context.Context, userId string) ([]models.Notification, error) {
	var notifications []models.Notification
	if err := s.db.SelectContext(ctx, &notifications, s.rebind(queryListNotifications), userId); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}
