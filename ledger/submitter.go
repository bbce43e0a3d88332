package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/vocdoni/electiond/failure"
	"github.com/vocdoni/electiond/log"
	"github.com/vocdoni/electiond/metrics"
	"github.com/vocdoni/electiond/types"
)

// DefaultConfirmTimeout bounds the wait for a vote transaction confirmation.
const DefaultConfirmTimeout = 2 * time.Minute

// Submitter sends ballots to the ledger. A ballot is submitted exactly once
// per call: write transactions are never retried, so a failure must be
// surfaced to the voter who may resubmit.
type Submitter struct {
	provider       Provider
	confirmTimeout time.Duration
	metrics        *metrics.Metrics
}

// NewSubmitter returns a Submitter. A zero confirmTimeout selects
// DefaultConfirmTimeout. m may be nil.
func NewSubmitter(provider Provider, confirmTimeout time.Duration, m *metrics.Metrics) *Submitter {
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultConfirmTimeout
	}
	return &Submitter{provider: provider, confirmTimeout: confirmTimeout, metrics: m}
}

// Submit casts the ballot on the ledger at address and waits for one
// confirmation. It returns the transaction hash.
func (s *Submitter) Submit(ctx context.Context, address string, votes []types.VoteSelection) (string, error) {
	if len(votes) == 0 {
		return "", failure.New(failure.Validation, "no votes provided")
	}
	l, err := s.provider.Ledger(address)
	if err != nil {
		if errors.Is(err, ErrInvalidAddress) {
			return "", failure.Wrap(failure.Validation, err)
		}
		return "", failure.Wrap(failure.LedgerWrite, err)
	}
	positions := make([]string, len(votes))
	candidates := make([]string, len(votes))
	for i, v := range votes {
		positions[i] = v.Position
		candidates[i] = v.Candidate
	}

	start := time.Now()
	tx, err := l.CastVotes(ctx, positions, candidates)
	if err != nil {
		s.metrics.IncLedgerWriteFailures()
		return "", failure.New(failure.LedgerWrite, "failed to submit vote: %w", err)
	}
	log.Debugw("vote transaction sent", "contract", address, "txHash", tx.Hash(), "selections", len(votes))

	waitCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()
	if err := tx.Wait(waitCtx); err != nil {
		s.metrics.IncLedgerWriteFailures()
		if errors.Is(err, context.DeadlineExceeded) {
			return "", failure.New(failure.LedgerWrite, "vote transaction %s not confirmed after %s", tx.Hash(), s.confirmTimeout)
		}
		return "", failure.New(failure.LedgerWrite, "vote transaction %s failed: %w", tx.Hash(), err)
	}
	s.metrics.ObserveConfirmLatency(time.Since(start))
	return tx.Hash(), nil
}
