package kv

import (
	"context"
	"errors"
)

// ErrNotFound dikembalikan Store kalau key belum ada
var ErrNotFound = errors.New("kv: key not found")

// Store is a string key-value store with the same contract as browser
// local storage: values are opaque strings, usually JSON.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
