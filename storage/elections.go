package storage

import (
	"context"
	"fmt"

	"github.com/vocdoni/electiond/types"
)

// Election returns the election document. It is read from the store on
// every call, since other processes may edit the voting window or the
// contract address.
func (s *Storage) Election(ctx context.Context, electionID string) (*types.Election, error) {
	e := &types.Election{}
	if err := s.getArtifact(ctx, ElectionKey(electionID), e); err != nil {
		return nil, err
	}
	if e.ID == "" {
		e.ID = electionID
	}
	return e, nil
}

// SetElection stores the election document.
func (s *Storage) SetElection(ctx context.Context, e *types.Election) error {
	if err := ValidateID("election id", e.ID); err != nil {
		return err
	}
	if err := s.setArtifact(ctx, ElectionKey(e.ID), e); err != nil {
		return fmt.Errorf("set election %s: %w", e.ID, err)
	}
	return nil
}
