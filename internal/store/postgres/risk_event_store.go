package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sniperlabs/snipercore/internal/domain"
)

// RiskEventStore implements domain.RiskEventStore using PostgreSQL.
type RiskEventStore struct {
	pool *pgxpool.Pool
}

// NewRiskEventStore creates a RiskEventStore backed by the given pool.
func NewRiskEventStore(pool *pgxpool.Pool) *RiskEventStore {
	return &RiskEventStore{pool: pool}
}

// Create appends an event to the risk audit trail.
func (s *RiskEventStore) Create(ctx context.Context, evt domain.RiskEvent) error {
	const query = `
		INSERT INTO risk_events (id, kind, symbol, reason, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.pool.Exec(ctx, query,
		evt.ID, evt.Kind, evt.Symbol, evt.Reason, evt.Detail, evt.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert risk event %s: %w", evt.ID, err)
	}
	return nil
}

// List returns risk events newest first with pagination.
func (s *RiskEventStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.RiskEvent, error) {
	query := `SELECT id, kind, symbol, reason, detail, created_at FROM risk_events ORDER BY created_at DESC`
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
		return nil, fmt.Errorf("postgres: list risk events: %w", err)
	}
	defer rows.Close()

	var events []domain.RiskEvent
	for rows.Next() {
		var e domain.RiskEvent
		if err := rows.Scan(&e.ID, &e.Kind, &e.Symbol, &e.Reason, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan risk event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan risk events: %w", err)
	}
	return events, nil
}

// Compile-time interface check.
var _ domain.RiskEventStore = (*RiskEventStore)(nil)
