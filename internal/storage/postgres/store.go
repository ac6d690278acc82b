package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lueurxax/fundraising-ledger/internal/core/errors"
	"github.com/lueurxax/fundraising-ledger/internal/core/ports"
)

const (
	pgTooManyConnections = "53300"
	pgUndefinedTable     = "42P01"

	// SQLSTATE classes worth retrying: connection exceptions, transaction
	// rollbacks and operator intervention (shutdowns, restarts).
	pgClassConnection = "08"
	pgClassRollback   = "40"
	pgClassOperator   = "57"
)

// Store implements ports.TableStore on PostgreSQL.
type Store struct {
	db *DB
}

// NewStore creates a Store on an open, migrated database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

var _ ports.TableStore = (*Store)(nil)

// Open returns the table, registering it when missing.
func (s *Store) Open(ctx context.Context, key, name string) (ports.Table, bool, error) {
	tag, err := s.db.Pool.Exec(ctx, `
		INSERT INTO ledger_tables (table_key, table_name)
		VALUES ($1, $2)
		ON CONFLICT (table_key, table_name) DO NOTHING`, key, name)
	if err != nil {
		return nil, false, fmt.Errorf("registering table %s: %w", name, classify(err))
	}

	created := tag.RowsAffected() == 1
	if created {
		s.db.Logger.Info().Str("table", name).Msg("Created ledger table")
	}

	return &Table{db: s.db, key: key, name: name}, created, nil
}

// Find returns the table or errors.ErrTableNotFound.
func (s *Store) Find(ctx context.Context, key, name string) (ports.Table, error) {
	var one int

	err := s.db.Pool.QueryRow(ctx, `
		SELECT 1 FROM ledger_tables WHERE table_key = $1 AND table_name = $2`, key, name).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) || isUndefinedTable(err) {
		return nil, fmt.Errorf("%w: %s", errors.ErrTableNotFound, name)
	}

	if err != nil {
		return nil, fmt.Errorf("looking up table %s: %w", name, classify(err))
	}

	return &Table{db: s.db, key: key, name: name}, nil
}

// Table is one ledger table. Row 1 is the header; data rows follow in
// append order.
type Table struct {
	db   *DB
	key  string
	name string
}

var _ ports.Table = (*Table)(nil)

// ColumnValues returns column col (1-based) including the header cell, with
// trailing empty cells removed.
func (t *Table) ColumnValues(ctx context.Context, col int) ([]string, error) {
	header, err := t.HeaderRow(ctx)
	if err != nil {
		return nil, err
	}

	values := []string{cellAt(header, col)}

	rows, err := t.db.Pool.Query(ctx, `
		SELECT COALESCE(cells[$3], '')
		FROM ledger_rows
		WHERE table_key = $1 AND table_name = $2
		ORDER BY seq`, t.key, t.name, col)
	if err != nil {
		return nil, fmt.Errorf("reading column %d: %w", col, classify(err))
	}

	cells, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("reading column %d: %w", col, classify(err))
	}

	return trimTrailingEmpty(append(values, cells...)), nil
}

// HeaderRow returns row 1.
func (t *Table) HeaderRow(ctx context.Context) ([]string, error) {
	var header []string

	err := t.db.Pool.QueryRow(ctx, `
		SELECT header FROM ledger_tables WHERE table_key = $1 AND table_name = $2`, t.key, t.name).Scan(&header)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", errors.ErrTableNotFound, t.name)
	}

	if err != nil {
		return nil, fmt.Errorf("reading header: %w", classify(err))
	}

	return header, nil
}

// UpdateRow overwrites row. Cells are stored as text whatever the mode.
func (t *Table) UpdateRow(ctx context.Context, row int, values []string, _ ports.ValueInputMode) error {
	if row < 1 {
		return fmt.Errorf("%w: row %d", errors.ErrInvalidInput, row)
	}

	var (
		tag pgconn.CommandTag
		err error
	)

	if row == 1 {
		tag, err = t.db.Pool.Exec(ctx, `
			UPDATE ledger_tables SET header = $3
			WHERE table_key = $1 AND table_name = $2`, t.key, t.name, values)
	} else {
		tag, err = t.db.Pool.Exec(ctx, `
			UPDATE ledger_rows SET cells = $4
			WHERE seq = (
				SELECT seq FROM ledger_rows
				WHERE table_key = $1 AND table_name = $2
				ORDER BY seq OFFSET $3 LIMIT 1
			)`, t.key, t.name, row-2, values)
	}

	if err != nil {
		return fmt.Errorf("updating row %d: %w", row, classify(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: row %d of %s does not exist", errors.ErrInvalidInput, row, t.name)
	}

	return nil
}

// AppendRows copies rows in one statement, so a batch is written entirely
// or not at all.
func (t *Table) AppendRows(ctx context.Context, rows [][]string, _ ports.ValueInputMode) error {
	if len(rows) == 0 {
		return nil
	}

	src := make([][]any, 0, len(rows))
	for _, r := range rows {
		src = append(src, []any{t.key, t.name, r})
	}

	_, err := t.db.Pool.CopyFrom(ctx,
		pgx.Identifier{"ledger_rows"},
		[]string{"table_key", "table_name", "cells"},
		pgx.CopyFromRows(src),
	)
	if err != nil {
		return fmt.Errorf("appending %d rows: %w", len(rows), classify(err))
	}

	return nil
}

func cellAt(row []string, col int) string {
	if col < 1 || col > len(row) {
		return ""
	}

	return row[col-1]
}

func trimTrailingEmpty(values []string) []string {
	end := len(values)
	for end > 0 && values[end-1] == "" {
		end--
	}

	return values[:end]
}

// isUndefinedTable reports a query against a schema that was never migrated.
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}

// classify tags retryable database errors with the store sentinels.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgTooManyConnections:
			return fmt.Errorf("%w: %w", errors.ErrStoreRateLimited, err)
		case strings.HasPrefix(pgErr.Code, pgClassConnection),
			strings.HasPrefix(pgErr.Code, pgClassRollback),
			strings.HasPrefix(pgErr.Code, pgClassOperator):
			return fmt.Errorf("%w: %w", errors.ErrStoreTransient, err)
		default:
			return err
		}
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", errors.ErrStoreTransient, err)
	}

	return err
}
