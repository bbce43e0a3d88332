package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/vocdoni/electiond/types"
)

// Eligibility returns the eligibility record of a voter, or ErrNotFound.
func (s *Storage) Eligibility(ctx context.Context, electionID, email string) (*types.EligibilityRecord, error) {
	rec := &types.EligibilityRecord{}
	if err := s.getArtifact(ctx, EligibilityKey(electionID, email), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SetEligibility stores the eligibility record of a voter.
func (s *Storage) SetEligibility(ctx context.Context, electionID, email string, rec *types.EligibilityRecord) error {
	if err := ValidateID("election id", electionID); err != nil {
		return err
	}
	if NormalizeEmail(email) == "" {
		return fmt.Errorf("empty email")
	}
	return s.setArtifact(ctx, EligibilityKey(electionID, email), rec)
}

// EligibilityList returns every eligibility record of an election indexed
// by email. Records that cannot be decoded are skipped.
func (s *Storage) EligibilityList(ctx context.Context, electionID string) (map[string]types.EligibilityRecord, error) {
	prefix := EligibilityPrefix(electionID)
	entries, err := s.kv.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	list := make(map[string]types.EligibilityRecord, len(entries))
	for _, e := range entries {
		var rec types.EligibilityRecord
		if err := decodeArtifact(e.Value, &rec); err != nil {
			continue
		}
		list[strings.TrimPrefix(e.Key, prefix)] = rec
	}
	return list, nil
}
