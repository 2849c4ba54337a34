package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lpwatch/rangekeeper/internal/domain"
)

// AlertStore implements domain.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore creates a new AlertStore backed by the given pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

func scanAlertRows(rows pgx.Rows) ([]domain.Alert, error) {
	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(&a.ID, &a.Event, &a.Title, &a.Message, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create inserts a new alert record.
func (s *AlertStore) Create(ctx context.Context, a domain.Alert) error {
	const query = `
		INSERT INTO alerts (id, event, title, message, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query, a.ID, a.Event, a.Title, a.Message, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create alert %s: %w", a.ID, err)
	}
	return nil
}

// List returns alerts, newest first, with pagination and optional time
// filtering.
func (s *AlertStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Alert, error) {
	query := `SELECT id, event, title, message, created_at FROM alerts`
	var args []any
	argIdx := 1

	var conds []string
	if opts.Since != nil {
		conds = append(conds, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		conds = append(conds, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *opts.Until)
		argIdx++
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts: %w", err)
	}
	defer rows.Close()

	out, err := scanAlertRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan alerts: %w", err)
	}
	return out, nil
}

// ListBefore returns alerts created strictly before the cutoff.
func (s *AlertStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Alert, error) {
	query := `SELECT id, event, title, message, created_at FROM alerts
		WHERE created_at < $1
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts before %s: %w", before, err)
	}
	defer rows.Close()

	out, err := scanAlertRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan alerts: %w", err)
	}
	return out, nil
}

var _ domain.AlertStore = (*AlertStore)(nil)
