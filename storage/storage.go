// storage package wraps the key-value store shared by the voting service and
// the services that manage elections, users and eligibility lists. It
// provides typed accessors over the flat key layout described in keys.go.
//
// Two backends are available: an embedded pebble database (single process)
// and Redis (shared between processes).
package storage

import (
	"fmt"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

const (
	// TypePebble selects the embedded database backend.
	TypePebble = "pebble"
	// TypeRedis selects the Redis backend.
	TypeRedis = "redis"
)

// Storage provides typed access to the shared key-value store.
type Storage struct {
	kv KV
}

// New creates a new Storage instance over the given store.
func New(kv KV) *Storage {
	return &Storage{kv: kv}
}

// Open opens the backend selected by typ. For pebble, dir is the data
// directory. For redis, url is the server address.
func Open(typ, dir, url string) (*Storage, error) {
	switch typ {
	case TypePebble, "":
		database, err := metadb.New(db.TypePebble, dir)
		if err != nil {
			return nil, fmt.Errorf("open database at %s: %w", dir, err)
		}
		return New(NewDBKV(database)), nil
	case TypeRedis:
		kv, err := NewRedisKV(url)
		if err != nil {
			return nil, err
		}
		return New(kv), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", typ)
	}
}

// KV returns the underlying key-value store.
func (s *Storage) KV() KV {
	return s.kv
}

// Close closes the storage.
func (s *Storage) Close() {
	_ = s.kv.Close()
}
