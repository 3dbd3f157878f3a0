package storage

import (
	"context"
)

const getValue = `-- name: GetValue :one
SELECT value FROM kv WHERE key = ?
`

func (q *Queries) GetValue(ctx context.Context, key string) ([]byte, error) {
	row := q.db.QueryRowContext(ctx, getValue, key)
	var value []byte
	err := row.Scan(&value)
	return value, err
}

const upsertValue = `-- name: UpsertValue :exec
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
`

type UpsertValueParams struct {
	Key   string
	Value []byte
}

func (q *Queries) UpsertValue(ctx context.Context, arg UpsertValueParams) error {
	_, err := q.db.ExecContext(ctx, upsertValue, arg.Key, arg.Value)
	return err
}

const deleteValue = `-- name: DeleteValue :exec
DELETE FROM kv WHERE key = ?
`

func (q *Queries) DeleteValue(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, deleteValue, key)
	return err
}
