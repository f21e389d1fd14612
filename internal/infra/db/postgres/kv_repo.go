package postgres

import (
	"context"
	"database/sql"

	"github.com/bryanwahyu/pyq-analyzer/internal/infra/db/sqlkv"
)

var Dialect = sqlkv.Dialect{
	Name: "postgres",
	Create: `
CREATE TABLE IF NOT EXISTS %s (
  k          TEXT        PRIMARY KEY,
  v          TEXT        NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);`,
	Select: `SELECT v FROM %s WHERE k=$1 LIMIT 1;`,
	Upsert: `
INSERT INTO %s (k, v, updated_at) VALUES ($1,$2,$3)
ON CONFLICT (k) DO UPDATE SET
 v = EXCLUDED.v,
 updated_at = EXCLUDED.updated_at;`,
	Delete: `DELETE FROM %s WHERE k=$1;`,
}

func NewKVRepository(ctx context.Context, db *sql.DB, table string) (*sqlkv.Store, error) {
	return sqlkv.New(ctx, db, table, Dialect)
}
