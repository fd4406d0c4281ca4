package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository is the notification sink abstraction.
type Repository interface {
	Create(ctx context.Context, n *Notification) (*Notification, error)
	ListByRecipient(ctx context.Context, recipientID int64, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id, recipientID int64) (*Notification, error)
}

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores notifications in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("notifications: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// Create appends a notification row.
func (r *PostgresRepository) Create(ctx context.Context, n *Notification) (*Notification, error) {
	query := `
		INSERT INTO notifications (content, recipient_id)
		VALUES ($1, $2)
		RETURNING id, read, created_at
	`
	out := *n
	err := r.pool.QueryRow(ctx, query, n.Content, n.RecipientID).
		Scan(&out.ID, &out.Read, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("notifications: insert failed: %w", err)
	}
	return &out, nil
}

// ListByRecipient returns the recipient's latest notifications, newest
// first.
func (r *PostgresRepository) ListByRecipient(ctx context.Context, recipientID int64, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = ListLimit
	}
	query := `
		SELECT id, content, recipient_id, read, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("notifications: list failed: %w", err)
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Content, &n.RecipientID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flips the read flag, scoped to the recipient so users cannot
// touch each other's notifications.
func (r *PostgresRepository) MarkRead(ctx context.Context, id, recipientID int64) (*Notification, error) {
	query := `
		UPDATE notifications
		SET read = TRUE
		WHERE id = $1 AND recipient_id = $2
		RETURNING id, content, recipient_id, read, created_at
	`
	var n Notification
	err := r.pool.QueryRow(ctx, query, id, recipientID).
		Scan(&n.ID, &n.Content, &n.RecipientID, &n.Read, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("notifications: mark read failed: %w", err)
	}
	return &n, nil
}
