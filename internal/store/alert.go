package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Alert is a recorded face-touch alert.
type Alert struct {
	ID         string
	Label      string
	Confidence float64
	CreatedAt  time.Time
}

// AlertRepository provides access to the alert log.
type AlertRepository struct {
	db *sql.DB
}

// Alerts returns the alert repository for this store.
func (s *Store) Alerts() *AlertRepository {
	return &AlertRepository{db: s.db}
}

// Create inserts a new alert, assigning its ID and timestamp when unset.
func (r *AlertRepository) Create(ctx context.Context, a *Alert) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts (id, label, confidence, created_at) VALUES (?, ?, ?, ?)`,
		a.ID, a.Label, a.Confidence, a.CreatedAt,
	)
	return err
}

// GetByID retrieves an alert by its ID.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*Alert, error) {
	a := &Alert{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, label, confidence, created_at FROM alerts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Label, &a.Confidence, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// List returns the most recent alerts, newest first. A limit <= 0 returns all.
func (r *AlertRepository) List(ctx context.Context, limit int) ([]*Alert, error) {
	query := `SELECT id, label, confidence, created_at FROM alerts ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		a := &Alert{}
		if err := rows.Scan(&a.ID, &a.Label, &a.Confidence, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return alerts, nil
}

// Count returns the number of alerts recorded since the given time.
func (r *AlertRepository) Count(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE created_at >= ?`, since).Scan(&n)
	return n, err
}

// DeleteAll removes every recorded alert.
func (r *AlertRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM alerts`)
	return err
}
