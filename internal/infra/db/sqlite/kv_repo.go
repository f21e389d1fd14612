package sqlite

import (
	"context"
	"database/sql"

	"github.com/bryanwahyu/pyq-analyzer/internal/infra/db/sqlkv"
)

var Dialect = sqlkv.Dialect{
	Name: "sqlite",
	Create: `
CREATE TABLE IF NOT EXISTS %s (
  k          TEXT PRIMARY KEY,
  v          TEXT NOT NULL,
  updated_at DATETIME NOT NULL
);`,
	Select: `SELECT v FROM %s WHERE k=? LIMIT 1;`,
	Upsert: `
INSERT INTO %s (k, v, updated_at) VALUES (?,?,?)
ON CONFLICT(k) DO UPDATE SET v=excluded.v, updated_at=excluded.updated_at;`,
	Delete: `DELETE FROM %s WHERE k=?;`,
}

func NewKVRepository(ctx context.Context, db *sql.DB, table string) (*sqlkv.Store, error) {
	return sqlkv.New(ctx, db, table, Dialect)
}

// Open connects to path and returns a ready store.
func Open(ctx context.Context, path, table string) (*sqlkv.Store, error) {
	db, err := Connect(ctx, path)
	if err != nil {
		return nil, err
	}
	s, err := NewKVRepository(ctx, db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
