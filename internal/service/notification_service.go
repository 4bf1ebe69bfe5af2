package service

import (
	"context"
	"strings"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
)

const broadcastPageSize = 500

type NotificationInput struct {
	Title     string
	Message   string
	Type      domain.NotificationType
	Category  string
	ActionURL string
}

// NotificationService manages the dashboard notification bell.
type NotificationService interface {
	List(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]domain.Notification, int, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, userID, id int64) error
	Send(ctx context.Context, userID int64, in NotificationInput) (*domain.Notification, error)
	// Broadcast notifies every active member, or only those on plan when it is set.
	Broadcast(ctx context.Context, in NotificationInput, plan domain.Plan) (int, error)
}

type notificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	pageSize      int
}

func NewNotificationService(notifications repository.NotificationRepository, users repository.UserRepository) NotificationService {
	return &notificationService{notifications: notifications, users: users, pageSize: broadcastPageSize}
}

func (s *notificationService) List(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]domain.Notification, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	items, err := s.notifications.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return items, unread, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.notifications.CountUnread(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id int64) error {
	return s.notifications.MarkRead(ctx, userID, id)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.notifications.MarkAllRead(ctx, userID)
}

func (s *notificationService) Delete(ctx context.Context, userID, id int64) error {
	return s.notifications.Delete(ctx, userID, id)
}

func (s *notificationService) Send(ctx context.Context, userID int64, in NotificationInput) (*domain.Notification, error) {
	n, err := buildNotification(userID, in)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.notifications.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *notificationService) Broadcast(ctx context.Context, in NotificationInput, plan domain.Plan) (int, error) {
	if _, err := buildNotification(0, in); err != nil {
		return 0, err
	}
	if plan != "" && !plan.Valid() {
		return 0, invalid("plan", "unknown plan %q", plan)
	}

	sent := 0
	var lastID int64
	for {
		users, err := s.users.List(ctx, repository.UserFilter{
			Plan:      plan,
			Status:    domain.UserStatusActive,
			Limit:     s.pageSize,
			OrderByID: true,
			BeforeID:  lastID,
		})
		if err != nil {
			return sent, err
		}
		if len(users) == 0 {
			return sent, nil
		}

		batch := make([]domain.Notification, 0, len(users))
		for _, u := range users {
			n, _ := buildNotification(u.ID, in)
			batch = append(batch, *n)
		}
		n, err := s.notifications.CreateMany(ctx, batch)
		sent += n
		if err != nil {
			return sent, err
		}
		if len(users) < s.pageSize {
			return sent, nil
		}
		lastID = users[len(users)-1].ID
	}
}

func buildNotification(userID int64, in NotificationInput) (*domain.Notification, error) {
	title := strings.TrimSpace(in.Title)
	message := strings.TrimSpace(in.Message)
	if title == "" {
		return nil, invalid("title", "title is required")
	}
	if message == "" {
		return nil, invalid("message", "message is required")
	}
	typ := in.Type
	if typ == "" {
		typ = domain.NotificationInfo
	}
	if !typ.Valid() {
		return nil, invalid("type", "unknown notification type %q", in.Type)
	}
	return &domain.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		Category:  strings.TrimSpace(in.Category),
		ActionURL: strings.TrimSpace(in.ActionURL),
	}, nil
}
