package storage

import (
	"context"
	"errors"
	"os"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/electiond/util"
	"go.vocdoni.io/dvote/db/metadb"
)

// testKVBackends returns every backend available in the test environment.
// Redis is only used when REDIS_URL is set.
func testKVBackends(t *testing.T) map[string]KV {
	backends := map[string]KV{
		TypePebble: NewDBKV(metadb.NewTest(t)),
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		kv, err := NewRedisKV(url)
		qt.Assert(t, err, qt.IsNil)
		t.Cleanup(func() { _ = kv.Close() })
		backends[TypeRedis] = kv
	}
	return backends
}

func TestKVBackends(t *testing.T) {
	for name, kv := range testKVBackends(t) {
		t.Run(name, func(t *testing.T) {
			c := qt.New(t)
			ctx := context.Background()
			// random namespace so runs against a shared redis don't collide
			ns := "test" + util.RandomHex(4) + ":"

			_, err := kv.Get(ctx, ns+"missing")
			c.Assert(errors.Is(err, ErrNotFound), qt.IsTrue)

			c.Assert(kv.Set(ctx, ns+"a", []byte("1")), qt.IsNil)
			c.Assert(kv.Set(ctx, ns+"a:x", []byte("2")), qt.IsNil)
			c.Assert(kv.Set(ctx, ns+"a:y", []byte("3")), qt.IsNil)
			c.Assert(kv.Set(ctx, ns+"b", []byte("4")), qt.IsNil)

			v, err := kv.Get(ctx, ns+"a")
			c.Assert(err, qt.IsNil)
			c.Assert(string(v), qt.Equals, "1")

			entries, err := kv.ScanPrefix(ctx, ns+"a:")
			c.Assert(err, qt.IsNil)
			c.Assert(entries, qt.DeepEquals, []Entry{
				{Key: ns + "a:x", Value: []byte("2")},
				{Key: ns + "a:y", Value: []byte("3")},
			})

			entries, err = kv.ScanPrefix(ctx, ns)
			c.Assert(err, qt.IsNil)
			c.Assert(entries, qt.HasLen, 4)

			c.Assert(kv.Delete(ctx, ns+"a:x"), qt.IsNil)
			c.Assert(kv.Delete(ctx, ns+"a:x"), qt.IsNil)
			entries, err = kv.ScanPrefix(ctx, ns+"a:")
			c.Assert(err, qt.IsNil)
			c.Assert(entries, qt.HasLen, 1)

			cond, ok := kv.(Conditional)
			c.Assert(ok, qt.IsTrue)
			written, err := cond.SetIfAbsent(ctx, ns+"c", []byte("5"))
			c.Assert(err, qt.IsNil)
			c.Assert(written, qt.IsTrue)
			written, err = cond.SetIfAbsent(ctx, ns+"c", []byte("6"))
			c.Assert(err, qt.IsNil)
			c.Assert(written, qt.IsFalse)
			v, err = kv.Get(ctx, ns+"c")
			c.Assert(err, qt.IsNil)
			c.Assert(string(v), qt.Equals, "5")

			for _, k := range []string{"a", "a:y", "b", "c"} {
				c.Assert(kv.Delete(ctx, ns+k), qt.IsNil)
			}
		})
	}
}

func TestEscapeGlob(t *testing.T) {
	c := qt.New(t)
	c.Assert(escapeGlob("vote:user:e1:"), qt.Equals, "vote:user:e1:")
	c.Assert(escapeGlob("a*b?[c]\\"), qt.Equals, `a\*b\?\[c\]\\`)
}
