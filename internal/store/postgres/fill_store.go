package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sniperlabs/snipercore/internal/domain"
)

// FillStore implements domain.FillStore using PostgreSQL.
type FillStore struct {
	pool *pgxpool.Pool
}

// NewFillStore creates a FillStore backed by the given connection pool.
func NewFillStore(pool *pgxpool.Pool) *FillStore {
	return &FillStore{pool: pool}
}

const fillSelectCols = `id, order_id, symbol, quantity, price, latency_ms, simulated, executed_at`

func scanFillRows(rows pgx.Rows) ([]domain.Fill, error) {
	var fills []domain.Fill
	for rows.Next() {
		var f domain.Fill
		if err := rows.Scan(
			&f.ID, &f.OrderID, &f.Symbol, &f.Quantity,
			&f.Price, &f.LatencyMs, &f.Simulated, &f.ExecutedAt,
		); err != nil {
			return nil, err
		}
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// Create persists a settled fill.
func (s *FillStore) Create(ctx context.Context, fill domain.Fill) error {
	const query = `
		INSERT INTO fills (id, order_id, symbol, quantity, price, latency_ms, simulated, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := s.pool.Exec(ctx, query,
		fill.ID, fill.OrderID, fill.Symbol, fill.Quantity,
		fill.Price, fill.LatencyMs, fill.Simulated, fill.ExecutedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert fill %s: %w", fill.ID, err)
	}
	return nil
}

// List returns fills newest first with pagination.
func (s *FillStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Fill, error) {
	query := `SELECT ` + fillSelectCols + ` FROM fills ORDER BY executed_at DESC`
	args := []any{}
	argIdx := 1

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
		return nil, fmt.Errorf("postgres: list fills: %w", err)
	}
	defer rows.Close()

	fills, err := scanFillRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan fills: %w", err)
	}
	return fills, nil
}

// ListBefore returns fills executed strictly before the cutoff, oldest first.
// A limit of 0 means no limit.
func (s *FillStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Fill, error) {
	query := `SELECT ` + fillSelectCols + ` FROM fills WHERE executed_at < $1 ORDER BY executed_at ASC`
	args := []any{cutoff}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills before: %w", err)
	}
	defer rows.Close()

	fills, err := scanFillRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan fills before: %w", err)
	}
	return fills, nil
}

// DeleteBefore removes fills executed before the cutoff, returning the count.
func (s *FillStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fills WHERE executed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete fills before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.FillStore = (*FillStore)(nil)
