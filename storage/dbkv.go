package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// kvPrefix namespaces the election keys inside the embedded database.
var kvPrefix = []byte("kv/")

// DBKV implements KV on top of an embedded dvote database (pebble). It is
// consistent within a single process only.
type DBKV struct {
	db db.Database
	// condLock serializes SetIfAbsent against itself.
	condLock sync.Mutex
}

// NewDBKV wraps the given database.
func NewDBKV(database db.Database) *DBKV {
	return &DBKV{db: prefixeddb.NewPrefixedDatabase(database, kvPrefix)}
}

func (d *DBKV) Get(_ context.Context, key string) ([]byte, error) {
	v, err := d.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (d *DBKV) Set(_ context.Context, key string, value []byte) error {
	wTx := d.db.WriteTx()
	defer wTx.Discard()
	if err := wTx.Set([]byte(key), value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return wTx.Commit()
}

func (d *DBKV) Delete(_ context.Context, key string) error {
	wTx := d.db.WriteTx()
	defer wTx.Discard()
	if err := wTx.Delete([]byte(key)); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return wTx.Commit()
}

func (d *DBKV) ScanPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	var entries []Entry
	if err := d.db.Iterate([]byte(prefix), func(k, v []byte) bool {
		if ctx.Err() != nil {
			return false
		}
		// the iterator strips the prefix and reuses its buffers
		entries = append(entries, Entry{
			Key:   prefix + string(k),
			Value: append([]byte(nil), v...),
		})
		return true
	}); err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (d *DBKV) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	d.condLock.Lock()
	defer d.condLock.Unlock()
	if _, err := d.Get(ctx, key); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if err := d.Set(ctx, key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (d *DBKV) Close() error {
	return d.db.Close()
}
