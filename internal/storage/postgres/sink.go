package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fystack/tron-ledger-crawler/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
)

const transactionColumns = `status, tx_id, internal_tx_id, value, total_fee, block_number, block_timestamp, "from", "to", type`

const tokenColumns = `tx_id, token_address, block_timestamp, "from", "to", value`

const (
	// maxBindParams is the Postgres wire limit on parameters per statement.
	maxBindParams    = 65535
	defaultChunkRows = 1000
)

// chunkRows is how many rows of a table with the given column list fit in
// one INSERT.
func chunkRows(columns string) int {
	return min(defaultChunkRows, maxBindParams/(strings.Count(columns, ",")+1))
}

// chunkRanges splits n rows into [start, end) windows of at most size rows.
func chunkRanges(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}

// Sink writes one kind's records into its table.
type Sink[T model.Record] struct {
	db         *DB
	table      string
	role       model.AccountRole
	insertSQL  string
	selectCols string
	chunk      int
}

// NewTransactionSink serves the outbound or inbound table.
func NewTransactionSink(db *DB, kind model.Kind) *Sink[model.Transaction] {
	return &Sink[model.Transaction]{
		db:    db,
		table: kind.Table(),
		role:  kind.AccountRole(),
		insertSQL: fmt.Sprintf(`INSERT INTO %s (%s) VALUES (
			:status, :tx_id, :internal_tx_id, :value, :total_fee, :block_number, :block_timestamp, :from, :to, :type)`,
			kind.Table(), transactionColumns),
		selectCols: transactionColumns,
		chunk:      chunkRows(transactionColumns),
	}
}

func NewTokenSink(db *DB) *Sink[model.TokenTransfer] {
	return &Sink[model.TokenTransfer]{
		db:    db,
		table: model.KindTRC20.Table(),
		role:  model.KindTRC20.AccountRole(),
		insertSQL: fmt.Sprintf(`INSERT INTO %s (%s) VALUES (
			:tx_id, :token_address, :block_timestamp, :from, :to, :value)`,
			model.KindTRC20.Table(), tokenColumns),
		selectCols: tokenColumns,
		chunk:      chunkRows(tokenColumns),
	}
}

// InsertBatch writes all records in one transaction, split into INSERTs that
// stay under the bind parameter limit.
func (s *Sink[T]) InsertBatch(ctx context.Context, records []T) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range chunkRanges(len(records), s.chunk) {
		if _, err := tx.NamedExecContext(ctx, s.insertSQL, records[r[0]:r[1]]); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				return fmt.Errorf("insert rows %d-%d of %d into %s: %s (SQLSTATE %s): %w",
					r[0], r[1], len(records), s.table, pgErr.Message, pgErr.Code, err)
			}
			return fmt.Errorf("insert rows %d-%d of %d into %s: %w", r[0], r[1], len(records), s.table, err)
		}
	}
	return tx.Commit()
}

// Latest returns the newest row of account, or nil when the table has none.
func (s *Sink[T]) Latest(ctx context.Context, account string) (*T, error) {
	var where string
	switch s.role {
	case model.RoleFrom:
		where = `"from" = $1`
	case model.RoleTo:
		where = `"to" = $1`
	default:
		where = `("from" = $1 OR "to" = $1)`
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY block_timestamp DESC LIMIT 1`,
		s.selectCols, s.table, where)

	var row T
	if err := s.db.GetContext(ctx, &row, query, account); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest %s row for %s: %w", s.table, account, err)
	}
	return &row, nil
}
