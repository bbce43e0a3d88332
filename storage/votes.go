package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/vocdoni/electiond/types"
	"github.com/vocdoni/electiond/util"
)

// lockNonceSize is the number of random bytes appended to lock keys.
const lockNonceSize = 4

// VoteLocks returns the keys of the ballot locks currently held by a voter.
func (s *Storage) VoteLocks(ctx context.Context, electionID, userID string) ([]string, error) {
	entries, err := s.kv.ScanPrefix(ctx, VoteLockPrefix(electionID, userID))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	return keys, nil
}

// SetVoteLock writes a new ballot lock for the voter and returns its key.
// Each call writes a distinct key.
func (s *Storage) SetVoteLock(ctx context.Context, electionID, userID string, now time.Time) (string, error) {
	key := VoteLockKey(electionID, userID, now, util.RandomHex(lockNonceSize))
	rec := &types.VoteRecord{Status: types.VotePending, CreatedAt: now}
	if err := s.setArtifact(ctx, key, rec); err != nil {
		return "", fmt.Errorf("set vote lock: %w", err)
	}
	return key, nil
}

// DeleteVoteLock removes a ballot lock. Deleting a missing lock is not an
// error.
func (s *Storage) DeleteVoteLock(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, key)
}

// HasVoted reports whether the final vote flag of the voter exists.
func (s *Storage) HasVoted(ctx context.Context, electionID, userID string) (bool, error) {
	return s.exists(ctx, VoteFlagKey(electionID, userID))
}

// VoteFlag returns the final vote flag of the voter, or ErrNotFound.
func (s *Storage) VoteFlag(ctx context.Context, electionID, userID string) (*types.VoteRecord, error) {
	rec := &types.VoteRecord{}
	if err := s.getArtifact(ctx, VoteFlagKey(electionID, userID), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SetVoteFlag writes the final vote flag of the voter. If the store supports
// conditional writes the flag is only written when absent, and
// ErrKeyAlreadyExists is returned otherwise.
func (s *Storage) SetVoteFlag(ctx context.Context, electionID, userID string, now time.Time) error {
	key := VoteFlagKey(electionID, userID)
	data, err := encodeArtifact(&types.VoteRecord{Status: types.VoteCompleted, CreatedAt: now})
	if err != nil {
		return err
	}
	if c, ok := s.kv.(Conditional); ok {
		written, err := c.SetIfAbsent(ctx, key, data)
		if err != nil {
			return fmt.Errorf("set vote flag: %w", err)
		}
		if !written {
			return ErrKeyAlreadyExists
		}
		return nil
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("set vote flag: %w", err)
	}
	return nil
}

// SetVoteTx writes the anonymized record of a confirmed ballot.
func (s *Storage) SetVoteTx(ctx context.Context, electionID, txHash string, now time.Time) error {
	rec := &types.VoteTx{ElectionID: electionID, Timestamp: now}
	if err := s.setArtifact(ctx, VoteTxKey(electionID, txHash), rec); err != nil {
		return fmt.Errorf("set vote tx: %w", err)
	}
	return nil
}

// VoteTxs returns the transaction hashes recorded for an election.
func (s *Storage) VoteTxs(ctx context.Context, electionID string) ([]string, error) {
	prefix := VoteTxPrefix(electionID)
	entries, err := s.kv.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, 0, len(entries))
	for _, e := range entries {
		hashes = append(hashes, e.Key[len(prefix):])
	}
	return hashes, nil
}

// CountVoted returns the number of voters with a final vote flag in the
// election. Ballot locks are not counted.
func (s *Storage) CountVoted(ctx context.Context, electionID string) (int, error) {
	entries, err := s.kv.ScanPrefix(ctx, VoteUserPrefix(electionID))
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range entries {
		k, ok := ParseVoteUserKey(e.Key)
		if ok && !k.Lock && k.ElectionID == electionID {
			count++
		}
	}
	return count, nil
}

// StaleVoteLocks returns the keys of ballot locks, across all elections,
// created before cutoff. Locks whose record cannot be decoded are considered
// stale.
func (s *Storage) StaleVoteLocks(ctx context.Context, cutoff time.Time) ([]string, error) {
	entries, err := s.kv.ScanPrefix(ctx, voteUserPrefix)
	if err != nil {
		return nil, err
	}
	var stale []string
	for _, e := range entries {
		k, ok := ParseVoteUserKey(e.Key)
		if !ok || !k.Lock {
			continue
		}
		var rec types.VoteRecord
		if err := decodeArtifact(e.Value, &rec); err != nil || rec.CreatedAt.Before(cutoff) {
			stale = append(stale, e.Key)
		}
	}
	return stale, nil
}
