package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lpwatch/rangekeeper/internal/domain"
)

// RebalanceStore implements domain.RebalanceStore using PostgreSQL.
type RebalanceStore struct {
	pool *pgxpool.Pool
}

// NewRebalanceStore creates a new RebalanceStore backed by the given pool.
func NewRebalanceStore(pool *pgxpool.Pool) *RebalanceStore {
	return &RebalanceStore{pool: pool}
}

const rebalanceSelectCols = `id, position_id, stage, active_bin, sell_side,
	sell_amount, swap_tx_ref, new_position_id, deposit_tx_ref,
	new_lower_bin, new_upper_bin, error, started_at, completed_at`

func scanRebalanceRows(rows pgx.Rows) ([]domain.Rebalance, error) {
	var out []domain.Rebalance
	for rows.Next() {
		var r domain.Rebalance
		var stage string
		if err := rows.Scan(
			&r.ID, &r.PositionID, &stage, &r.ActiveBin, &r.SellSide,
			&r.SellAmount, &r.SwapTxRef, &r.NewPositionID, &r.DepositTxRef,
			&r.NewLowerBin, &r.NewUpperBin, &r.Error, &r.StartedAt, &r.CompletedAt,
		); err != nil {
			return nil, err
		}
		r.Stage = domain.RebalanceStage(stage)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Create inserts a new rebalance record.
func (s *RebalanceStore) Create(ctx context.Context, r domain.Rebalance) error {
	const query = `
		INSERT INTO rebalances (
			id, position_id, stage, active_bin, sell_side,
			sell_amount, swap_tx_ref, new_position_id, deposit_tx_ref,
			new_lower_bin, new_upper_bin, error, started_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14
		)`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.PositionID, string(r.Stage), r.ActiveBin, r.SellSide,
		r.SellAmount, r.SwapTxRef, r.NewPositionID, r.DepositTxRef,
		r.NewLowerBin, r.NewUpperBin, r.Error, r.StartedAt, r.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create rebalance %s: %w", r.ID, err)
	}
	return nil
}

// Update overwrites the record identified by r.ID.
func (s *RebalanceStore) Update(ctx context.Context, r domain.Rebalance) error {
	const query = `
		UPDATE rebalances SET
			stage = $2, active_bin = $3, sell_side = $4, sell_amount = $5,
			swap_tx_ref = $6, new_position_id = $7, deposit_tx_ref = $8,
			new_lower_bin = $9, new_upper_bin = $10, error = $11,
			completed_at = $12
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		r.ID, string(r.Stage), r.ActiveBin, r.SellSide, r.SellAmount,
		r.SwapTxRef, r.NewPositionID, r.DepositTxRef,
		r.NewLowerBin, r.NewUpperBin, r.Error, r.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update rebalance %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update rebalance %s: %w", r.ID, domain.ErrNotFound)
	}
	return nil
}

// List returns rebalance records, newest first, with pagination and optional
// time filtering.
func (s *RebalanceStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Rebalance, error) {
	query := `SELECT ` + rebalanceSelectCols + ` FROM rebalances`
	var args []any
	argIdx := 1

	var conds []string
	if opts.Since != nil {
		conds = append(conds, fmt.Sprintf("started_at >= $%d", argIdx))
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		conds = append(conds, fmt.Sprintf("started_at <= $%d", argIdx))
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

	query += " ORDER BY started_at DESC"
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
		return nil, fmt.Errorf("postgres: list rebalances: %w", err)
	}
	defer rows.Close()

	out, err := scanRebalanceRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan rebalances: %w", err)
	}
	return out, nil
}

// ListBefore returns completed rebalances started strictly before the cutoff.
func (s *RebalanceStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Rebalance, error) {
	query := `SELECT ` + rebalanceSelectCols + ` FROM rebalances
		WHERE started_at < $1 AND completed_at IS NOT NULL
		ORDER BY started_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rebalances before %s: %w", before, err)
	}
	defer rows.Close()

	out, err := scanRebalanceRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan rebalances: %w", err)
	}
	return out, nil
}

var _ domain.RebalanceStore = (*RebalanceStore)(nil)
