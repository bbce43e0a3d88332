package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/electiond/storage"
	"github.com/vocdoni/electiond/voting"
	"go.vocdoni.io/dvote/db/metadb"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) SweepStaleLocks(_ context.Context, _ time.Duration) (int, error) {
	s.calls.Add(1)
	return 0, s.err
}

func TestLockJanitor(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	sweeper := &countingSweeper{err: errors.New("store unavailable")}
	lj := NewLockJanitor(sweeper, time.Minute, 10*time.Millisecond)
	c.Assert(lj.Start(ctx), qt.IsNil)
	c.Assert(lj.Start(ctx), qt.ErrorMatches, "service already running")

	// sweep errors do not stop the janitor
	for i := 0; i < 100 && sweeper.calls.Load() < 3; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	c.Assert(sweeper.calls.Load() >= 3, qt.IsTrue)

	lj.Stop()
	calls := sweeper.calls.Load()
	time.Sleep(50 * time.Millisecond)
	c.Assert(sweeper.calls.Load(), qt.Equals, calls)

	c.Assert(NewLockJanitor(sweeper, 0, time.Second).Start(ctx), qt.ErrorMatches, "invalid sweep interval .*")
}

func TestLockJanitorSweepsStore(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	stg := storage.New(storage.NewDBKV(metadb.NewTest(t)))

	stale, err := stg.SetVoteLock(ctx, "e1", "u1", time.Now().Add(-time.Hour))
	c.Assert(err, qt.IsNil)
	_, err = stg.SetVoteLock(ctx, "e1", "u2", time.Now())
	c.Assert(err, qt.IsNil)

	lj := NewLockJanitor(voting.NewLockManager(stg, nil), 10*time.Minute, 10*time.Millisecond)
	c.Assert(lj.Start(ctx), qt.IsNil)
	defer lj.Stop()

	for i := 0; i < 100; i++ {
		locks, err := stg.VoteLocks(ctx, "e1", "u1")
		c.Assert(err, qt.IsNil)
		if len(locks) == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	locks, err := stg.VoteLocks(ctx, "e1", "u1")
	c.Assert(err, qt.IsNil)
	c.Assert(locks, qt.Not(qt.Contains), stale)
	c.Assert(locks, qt.HasLen, 0)
	locks, err = stg.VoteLocks(ctx, "e1", "u2")
	c.Assert(err, qt.IsNil)
	c.Assert(locks, qt.HasLen, 1)
}
