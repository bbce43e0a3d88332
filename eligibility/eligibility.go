// Package eligibility decides whether a voter may cast a ballot in an
// election, based on the eligibility records uploaded by the election admins.
package eligibility

import (
	"context"
	"errors"
	"fmt"

	"github.com/vocdoni/electiond/storage"
	"github.com/vocdoni/electiond/types"
)

// StatusNone is reported by Status when the voter has no eligibility record.
const StatusNone types.EligibilityStatus = "none"

// Gate reads eligibility records. It never writes.
type Gate struct {
	stg *storage.Storage
}

// New returns a Gate over the given storage.
func New(stg *storage.Storage) *Gate {
	return &Gate{stg: stg}
}

// CanVote reports whether the voter identified by email may vote in the
// election. A missing or denied record is not an error.
func (g *Gate) CanVote(ctx context.Context, electionID, email string) (bool, error) {
	status, err := g.Status(ctx, electionID, email)
	if err != nil {
		return false, err
	}
	return status.CanVote(), nil
}

// Status returns the eligibility status of the voter, or StatusNone if there
// is no record.
func (g *Gate) Status(ctx context.Context, electionID, email string) (types.EligibilityStatus, error) {
	rec, err := g.stg.Eligibility(ctx, electionID, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return StatusNone, nil
		}
		return "", fmt.Errorf("eligibility lookup: %w", err)
	}
	return rec.Status, nil
}

// EligibleCount returns the number of voters of the election whose status
// allows voting.
func (g *Gate) EligibleCount(ctx context.Context, electionID string) (int, error) {
	list, err := g.stg.EligibilityList(ctx, electionID)
	if err != nil {
		return 0, fmt.Errorf("eligibility scan: %w", err)
	}
	count := 0
	for _, rec := range list {
		if rec.Status.CanVote() {
			count++
		}
	}
	return count, nil
}
