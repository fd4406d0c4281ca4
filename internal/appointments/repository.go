package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository is the appointment store abstraction consumed by the service.
type Repository interface {
	Create(ctx context.Context, a *Appointment) (*Appointment, error)
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	MarkCanceled(ctx context.Context, id int64, at time.Time) (*Appointment, error)
	ActiveSlotExists(ctx context.Context, providerID int64, hourStart time.Time) (bool, error)
	ListActiveByRequester(ctx context.Context, requesterID int64, limit, offset int) ([]Summary, error)
	ListProviderDay(ctx context.Context, providerID int64, from, to time.Time) ([]ScheduleEntry, error)
	ActiveHours(ctx context.Context, providerID int64, from, to time.Time) ([]time.Time, error)
}

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// Create inserts a scheduled appointment. The partial unique index on
// (provider_id, hour) makes concurrent bookings of the same slot lose
// with a unique violation, which is surfaced as ErrSlotUnavailable.
func (r *PostgresRepository) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	query := `
		INSERT INTO appointments (requester_id, provider_id, date)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	out := *a
	err := r.pool.QueryRow(ctx, query,
		a.RequesterID,
		a.ProviderID,
		a.Date,
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("appointments: insert failed: %w", err)
	}
	return &out, nil
}

// GetByID fetches an appointment by primary key.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	query := `
		SELECT id, requester_id, provider_id, date, canceled_at, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var a Appointment
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.RequesterID,
		&a.ProviderID,
		&a.Date,
		&a.CanceledAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return &a, nil
}

// MarkCanceled stamps canceled_at once; a second call finds no row to
// update and reports ErrAlreadyCanceled.
func (r *PostgresRepository) MarkCanceled(ctx context.Context, id int64, at time.Time) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET canceled_at = $2, updated_at = now()
		WHERE id = $1 AND canceled_at IS NULL
		RETURNING id, requester_id, provider_id, date, canceled_at, created_at, updated_at
	`
	var a Appointment
	err := r.pool.QueryRow(ctx, query, id, at).Scan(
		&a.ID,
		&a.RequesterID,
		&a.ProviderID,
		&a.Date,
		&a.CanceledAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyCanceled
		}
		return nil, fmt.Errorf("appointments: cancel failed: %w", err)
	}
	return &a, nil
}

// ActiveSlotExists reports whether the provider already has a
// non-canceled appointment in the given clock hour.
func (r *PostgresRepository) ActiveSlotExists(ctx context.Context, providerID int64, hourStart time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE provider_id = $1
			  AND date_trunc('hour', date) = $2
			  AND canceled_at IS NULL
		)
	`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, providerID, hourStart).Scan(&exists); err != nil {
		return false, fmt.Errorf("appointments: slot check failed: %w", err)
	}
	return exists, nil
}

// ListActiveByRequester returns the requester's scheduled appointments,
// date ascending, joined with the provider's display profile.
func (r *PostgresRepository) ListActiveByRequester(ctx context.Context, requesterID int64, limit, offset int) ([]Summary, error) {
	query := `
		SELECT a.id, a.date, p.id, p.name, p.avatar_url
		FROM appointments a
		JOIN users p ON p.id = a.provider_id
		WHERE a.requester_id = $1 AND a.canceled_at IS NULL
		ORDER BY a.date
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, requesterID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(
			&s.ID,
			&s.Date,
			&s.Provider.ID,
			&s.Provider.Name,
			&s.Provider.AvatarURL,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListProviderDay returns a provider's scheduled appointments within
// [from, to), date ascending, joined with the requester's profile.
func (r *PostgresRepository) ListProviderDay(ctx context.Context, providerID int64, from, to time.Time) ([]ScheduleEntry, error) {
	query := `
		SELECT a.id, a.date, u.id, u.name, u.avatar_url
		FROM appointments a
		JOIN users u ON u.id = a.requester_id
		WHERE a.provider_id = $1
		  AND a.date >= $2 AND a.date < $3
		  AND a.canceled_at IS NULL
		ORDER BY a.date
	`
	rows, err := r.pool.Query(ctx, query, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointments: schedule failed: %w", err)
	}
	defer rows.Close()

	out := []ScheduleEntry{}
	for rows.Next() {
		var e ScheduleEntry
		if err := rows.Scan(
			&e.ID,
			&e.Date,
			&e.Requester.ID,
			&e.Requester.Name,
			&e.Requester.AvatarURL,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ActiveHours returns the hour starts of a provider's non-canceled
// appointments within [from, to).
func (r *PostgresRepository) ActiveHours(ctx context.Context, providerID int64, from, to time.Time) ([]time.Time, error) {
	query := `
		SELECT date_trunc('hour', date)
		FROM appointments
		WHERE provider_id = $1
		  AND date >= $2 AND date < $3
		  AND canceled_at IS NULL
	`
	rows, err := r.pool.Query(ctx, query, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointments: active hours failed: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
