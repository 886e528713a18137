package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/freeeve/repower/internal/model"
)

// NotificationRepo handles notification database operations.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo creates a NotificationRepo.
func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create stores an unread notification for userID.
func (r *NotificationRepo) Create(ctx context.Context, userID, text, reference string) (*model.Notification, error) {
	var n model.Notification
	var ref sql.NullString
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO notifications (user_id, text, reference) VALUES ($1, $2, $3)
		 RETURNING id, user_id, text, reference, read, created_at`,
		userID, text, nullStr(reference),
	).Scan(&n.ID, &n.UserID, &n.Text, &ref, &n.Read, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	n.Reference = ref.String
	return &n, nil
}

// ListByUser returns the latest notifications of a user, newest first.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, text, reference, read, created_at
		 FROM notifications
		 WHERE user_id = $1 AND (NOT $2 OR NOT read)
		 ORDER BY created_at DESC LIMIT 100`, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		var ref sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Text, &ref, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Reference = ref.String
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkAllRead flags every unread notification of a user and returns how
// many changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = true WHERE user_id = $1 AND NOT read`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return res.RowsAffected()
}
