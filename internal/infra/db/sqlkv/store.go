// Package sqlkv implements kv.Store over a single two-column SQL table.
// Dialects differ only in placeholders, upsert syntax and column types.
package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/bryanwahyu/pyq-analyzer/internal/domain/kv"
)

const DefaultTable = "kv_entries"

var rxTable = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// Dialect holds the statements for one database, with %s for the table.
type Dialect struct {
	Name   string
	Create string
	Select string
	Upsert string
	Delete string
}

type Store struct {
	db      *sql.DB
	dialect string

	selectQ string
	upsertQ string
	deleteQ string
}

// New creates the table when missing and prepares the statements.
func New(ctx context.Context, db *sql.DB, table string, d Dialect) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !rxTable.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(d.Create, table)); err != nil {
		return nil, fmt.Errorf("initializing %s schema: %w", d.Name, err)
	}
	return &Store{
		db:      db,
		dialect: d.Name,
		selectQ: fmt.Sprintf(d.Select, table),
		upsertQ: fmt.Sprintf(d.Upsert, table),
		deleteQ: fmt.Sprintf(d.Delete, table),
	}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, s.selectQ, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", kv.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%s get %s: %w", s.dialect, key, err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.upsertQ, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("%s set %s: %w", s.dialect, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.deleteQ, key); err != nil {
		return fmt.Errorf("%s delete %s: %w", s.dialect, key, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error { return s.db.Close() }
