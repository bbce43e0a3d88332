package voting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/electiond/failure"
	"github.com/vocdoni/electiond/log"
	"github.com/vocdoni/electiond/metrics"
	"github.com/vocdoni/electiond/storage"
)

// lockDeleteTimeout bounds the deletion of a lock key.
const lockDeleteTimeout = 10 * time.Second

// LockManager implements the duplicate vote prevention protocol over the
// shared store. Each (election, user) slot is Unvoted, Locked while an
// attempt is in flight, or Completed once the final vote flag is written.
//
// Across processes the protocol leaves a narrow window where two attempts
// pass the checks before either completes. Inside a process attempts on the
// same slot are serialized, and stores implementing storage.Conditional
// guarantee a single final flag.
type LockManager struct {
	stg      *storage.Storage
	recorder *Recorder
	slots    *slots
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewLockManager returns a LockManager. m may be nil.
func NewLockManager(stg *storage.Storage, m *metrics.Metrics) *LockManager {
	return &LockManager{
		stg:      stg,
		recorder: NewRecorder(stg),
		slots:    newSlots(),
		metrics:  m,
		now:      time.Now,
	}
}

// Lock is a ballot lock held by a vote attempt.
type Lock struct {
	ElectionID string
	UserID     string
	// Key is the unique lock key written to the store.
	Key string

	mgr  *LockManager
	slot string
	once sync.Once
}

// Acquire runs the checks that precede a ledger submission: it rejects the
// attempt if the voter already has a lock or a final flag, writes a new lock
// and checks again that no final flag appeared meanwhile. The returned Lock
// must be either committed or released.
func (m *LockManager) Acquire(ctx context.Context, electionID, userID string) (*Lock, error) {
	if err := storage.ValidateID("election id", electionID); err != nil {
		return nil, failure.Wrap(failure.Validation, err)
	}
	if err := storage.ValidateID("user id", userID); err != nil {
		return nil, failure.Wrap(failure.Validation, err)
	}
	slot := slotKey(electionID, userID)
	if !m.slots.tryAcquire(slot) {
		return nil, failure.ErrAlreadyVoted
	}
	lock, err := m.acquire(ctx, electionID, userID)
	if err != nil {
		m.slots.release(slot)
		return nil, err
	}
	lock.mgr = m
	lock.slot = slot
	return lock, nil
}

func (m *LockManager) acquire(ctx context.Context, electionID, userID string) (*Lock, error) {
	// first pass: pending locks or a final flag
	locks, err := m.stg.VoteLocks(ctx, electionID, userID)
	if err != nil {
		return nil, fmt.Errorf("lock scan: %w", err)
	}
	voted, err := m.stg.HasVoted(ctx, electionID, userID)
	if err != nil {
		return nil, fmt.Errorf("vote flag lookup: %w", err)
	}
	if len(locks) > 0 || voted {
		log.Debugw("vote rejected at first check", "election", electionID, "user", userID,
			"locks", len(locks), "voted", voted)
		return nil, failure.ErrAlreadyVoted
	}

	key, err := m.stg.SetVoteLock(ctx, electionID, userID, m.now())
	if err != nil {
		return nil, err
	}

	// double check: another attempt may have completed since the first pass
	voted, err = m.stg.HasVoted(ctx, electionID, userID)
	if err != nil {
		m.deleteLock(key)
		return nil, fmt.Errorf("vote flag lookup: %w", err)
	}
	if voted {
		log.Debugw("vote rejected at double check", "election", electionID, "user", userID)
		m.deleteLock(key)
		return nil, failure.ErrAlreadyVoted
	}
	return &Lock{ElectionID: electionID, UserID: userID, Key: key}, nil
}

// deleteLock removes a lock key. Failures are logged and otherwise ignored.
func (m *LockManager) deleteLock(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), lockDeleteTimeout)
	defer cancel()
	if err := m.stg.DeleteVoteLock(ctx, key); err != nil {
		log.Warnw("failed to delete ballot lock", "key", key, "error", err.Error())
	}
}

// Release deletes the lock so the voter may retry. It is safe to call more
// than once.
func (l *Lock) Release(ctx context.Context) {
	l.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockDeleteTimeout)
		defer cancel()
		if err := l.mgr.stg.DeleteVoteLock(ctx, l.Key); err != nil {
			log.Warnw("failed to delete ballot lock", "key", l.Key, "error", err.Error())
		}
		l.mgr.slots.release(l.slot)
	})
}

// Commit records a ballot confirmed on the ledger and releases the lock. The
// final flag is written before the lock is deleted so the slot is never seen
// empty. Once the flag exists the lock is always deleted. If the flag itself
// cannot be written the lock is kept, so the voter cannot vote again until
// it is swept.
func (m *LockManager) Commit(ctx context.Context, lock *Lock, txHash string) error {
	ctx = context.WithoutCancel(ctx)
	err := m.recorder.Record(ctx, lock.ElectionID, lock.UserID, txHash, m.now())
	switch {
	case errors.Is(err, ErrIncompleteRecord):
		lock.Release(ctx)
		return failure.Wrap(failure.Fatal, err)
	case errors.Is(err, ErrDuplicateBallot):
		// the ballot is on the ledger anyway, keep the original flag
		log.Errorw(err, fmt.Sprintf("duplicate ballot confirmed for election %s", lock.ElectionID))
	case err != nil:
		lock.once.Do(func() { m.slots.release(lock.slot) })
		return failure.Wrap(failure.Fatal, err)
	}
	lock.Release(ctx)
	return nil
}

// SweepStaleLocks deletes ballot locks older than maxAge, left behind by
// attempts that crashed before cleaning up. Locks held by attempts running
// in this process are kept. It returns the number of locks deleted.
func (m *LockManager) SweepStaleLocks(ctx context.Context, maxAge time.Duration) (int, error) {
	stale, err := m.stg.StaleVoteLocks(ctx, m.now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, key := range stale {
		k, ok := storage.ParseVoteUserKey(key)
		if !ok || m.slots.busy(slotKey(k.ElectionID, k.UserID)) {
			continue
		}
		if err := m.stg.DeleteVoteLock(ctx, key); err != nil {
			return deleted, err
		}
		deleted++
	}
	if deleted > 0 {
		log.Infow("stale ballot locks deleted", "count", deleted)
		m.metrics.AddStaleLocksSwept(deleted)
	}
	return deleted, nil
}
