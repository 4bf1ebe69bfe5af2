package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
)

const createNotificationsTable = `
CREATE TABLE IF NOT EXISTS notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	type TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT 'GERAL',
	action_url TEXT NOT NULL DEFAULT '',
	read INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_notifications_user_read ON notifications(user_id, read);
`

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) repository.NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createNotificationsTable); err != nil {
		return fmt.Errorf("create notifications table: %w", err)
	}
	return nil
}

const insertNotification = `
INSERT INTO notifications (user_id, title, message, type, category, action_url, read, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func notificationArgs(n *domain.Notification) []any {
	return []any{
		n.UserID,
		n.Title,
		n.Message,
		string(n.Type),
		n.Category,
		n.ActionURL,
		boolToInt(n.Read),
		n.CreatedAt,
	}
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) (int64, error) {
	n.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, insertNotification, notificationArgs(n)...)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("notification last insert id: %w", err)
	}
	n.ID = id
	return id, nil
}

func (r *NotificationRepository) CreateMany(ctx context.Context, ns []domain.Notification) (int, error) {
	if len(ns) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertNotification)
	if err != nil {
		return 0, fmt.Errorf("prepare notification insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range ns {
		ns[i].CreatedAt = now
		if _, err := stmt.ExecContext(ctx, notificationArgs(&ns[i])...); err != nil {
			return 0, fmt.Errorf("insert notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit notifications: %w", err)
	}
	return len(ns), nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]domain.Notification, error) {
	query := `
SELECT id, user_id, title, message, type, category, action_url, read, created_at
FROM notifications
WHERE user_id=?`
	args := []any{userID}
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := []domain.Notification{}
	for rows.Next() {
		var (
			n    domain.Notification
			typ  string
			read int
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &typ, &n.Category, &n.ActionURL, &read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = domain.NotificationType(typ)
		n.Read = read != 0
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=? AND read=0`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read=1 WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return expectAffected(res, "notification")
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read=1 WHERE user_id=? AND read=0`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.RowsAffected()
}

func (r *NotificationRepository) Delete(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return expectAffected(res, "notification")
}
