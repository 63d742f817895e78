package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{
		db: tx,
	}
}

const setLockTimeout = `-- name: SetLockTimeout :exec
SELECT set_config('lock_timeout', $1, true)
`

// SetLockTimeout bounds row-lock waits for the rest of the current transaction.
// The value uses Postgres interval syntax, e.g. "5000ms".
func (q *Queries) SetLockTimeout(ctx context.Context, timeout string) error {
	_, err := q.db.Exec(ctx, setLockTimeout, timeout)
	return err
}
