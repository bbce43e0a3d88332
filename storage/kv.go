package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by KV.Get when the key does not exist.
	ErrNotFound = errors.New("not found")
	// ErrKeyAlreadyExists is returned by conditional writes on an existing key.
	ErrKeyAlreadyExists = errors.New("key already exists")
)

// Entry is a key-value pair returned by a prefix scan.
type Entry struct {
	Key   string
	Value []byte
}

// KV is the flat key-value store shared by every request handler. Writes to
// a single key must be immediately visible to subsequent reads, and a prefix
// scan must reflect every write completed before it started.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// ScanPrefix returns every entry whose key starts with prefix, sorted
	// by key.
	ScanPrefix(ctx context.Context, prefix string) ([]Entry, error)
	Close() error
}

// Conditional is implemented by stores that can atomically write a key only
// when it does not exist yet.
type Conditional interface {
	// SetIfAbsent writes value under key and returns true, or returns false
	// without writing if the key already exists.
	SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error)
}
