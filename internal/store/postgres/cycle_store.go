package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// CycleStore implements domain.CycleStore using PostgreSQL.
type CycleStore struct {
	pool *pgxpool.Pool
}

// NewCycleStore creates a new CycleStore backed by the given connection pool.
func NewCycleStore(pool *pgxpool.Pool) *CycleStore {
	return &CycleStore{pool: pool}
}

// Log appends one store update to the audit log.
func (s *CycleStore) Log(ctx context.Context, e domain.CycleEntry) error {
	const query = `
		INSERT INTO update_cycles (
			cycle_id, file, records_added, entries_added, records_removed,
			entries_removed, entries, started_at, finished_at, err
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.pool.Exec(ctx, query,
		e.CycleID, e.File, e.RecordsAdded, e.EntriesAdded, e.RecordsRemoved,
		e.EntriesRemoved, e.Entries, e.StartedAt, e.FinishedAt, e.Err,
	)
	if err != nil {
		return fmt.Errorf("postgres: log cycle %s %s: %w", e.CycleID, e.File, err)
	}
	return nil
}

// List returns the newest entries first. An empty file lists every file.
func (s *CycleStore) List(ctx context.Context, file string, opts domain.ListOpts) ([]domain.CycleEntry, error) {
	query, args := listQuery(file, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list cycles: %w", err)
	}
	defer rows.Close()

	var entries []domain.CycleEntry
	for rows.Next() {
		var e domain.CycleEntry
		if err := rows.Scan(
			&e.ID, &e.CycleID, &e.File, &e.RecordsAdded, &e.EntriesAdded,
			&e.RecordsRemoved, &e.EntriesRemoved, &e.Entries,
			&e.StartedAt, &e.FinishedAt, &e.Err,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan cycle: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate cycles: %w", err)
	}
	return entries, nil
}

func listQuery(file string, opts domain.ListOpts) (string, []any) {
	query := `SELECT id, cycle_id::text, file, records_added, entries_added,
		records_removed, entries_removed, entries, started_at, finished_at, err
		FROM update_cycles WHERE 1=1`
	args := []any{}
	argIdx := 1

	if file != "" {
		query += fmt.Sprintf(" AND file = $%d", argIdx)
		args = append(args, file)
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND started_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND started_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY started_at DESC, id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}

var _ domain.CycleStore = (*CycleStore)(nil)
