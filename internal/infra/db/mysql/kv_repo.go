package mysql

import (
	"context"
	"database/sql"

	"github.com/bryanwahyu/pyq-analyzer/internal/infra/db/sqlkv"
)

var Dialect = sqlkv.Dialect{
	Name: "mysql",
	Create: `
CREATE TABLE IF NOT EXISTS %s (
  k          VARCHAR(255) NOT NULL PRIMARY KEY,
  v          LONGTEXT     NOT NULL,
  updated_at DATETIME(3)  NOT NULL
) DEFAULT CHARSET=utf8mb4;`,
	Select: `SELECT v FROM %s WHERE k=? LIMIT 1;`,
	Upsert: `
INSERT INTO %s (k, v, updated_at) VALUES (?,?,?)
ON DUPLICATE KEY UPDATE v=VALUES(v), updated_at=VALUES(updated_at);`,
	Delete: `DELETE FROM %s WHERE k=?;`,
}

// NewKVRepository stores entries in table, creating it when missing.
func NewKVRepository(ctx context.Context, db *sql.DB, table string) (*sqlkv.Store, error) {
	return sqlkv.New(ctx, db, table, Dialect)
}
