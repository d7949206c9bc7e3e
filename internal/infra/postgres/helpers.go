package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/openctemio/console/pkg/domain/shared"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// nullID maps the zero ID to NULL, for optional foreign keys.
func nullID(id shared.ID) sql.NullInt64 {
	if id.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id.Int64(), Valid: true}
}

// nullIDValue extracts an ID from sql.NullInt64. Returns zero if NULL.
func nullIDValue(n sql.NullInt64) shared.ID {
	if n.Valid {
		return shared.ID(n.Int64)
	}
	return 0
}

// idArray adapts ids for `= ANY($n)` predicates.
func idArray(ids []shared.ID) any {
	return pq.Array(shared.Int64s(ids))
}

// stringArray never hands NULL to a NOT NULL TEXT[] column.
func stringArray(values []string) any {
	if values == nil {
		values = []string{}
	}
	return pq.Array(values)
}

// rowsAffected returns the affected row count, treating driver errors as zero.
func rowsAffected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

// isForeignKeyViolation checks if the error is a PostgreSQL foreign key violation.
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}
