// Package voting coordinates ballot submission: eligibility and timing
// checks, the ballot lock protocol, the ledger transaction and the
// anonymized records written once it is confirmed.
package voting

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/electiond/eligibility"
	"github.com/vocdoni/electiond/failure"
	"github.com/vocdoni/electiond/ledger"
	"github.com/vocdoni/electiond/log"
	"github.com/vocdoni/electiond/metrics"
	"github.com/vocdoni/electiond/storage"
	"github.com/vocdoni/electiond/types"
)

// CastRequest is a ballot submitted by an authenticated voter.
type CastRequest struct {
	User            *types.User
	ElectionID      string
	ContractAddress string
	Ballot          types.BallotInput
}

// Receipt is returned for a ballot confirmed on the ledger.
type Receipt struct {
	TxHash         string    `json:"txHash"`
	VotesProcessed int       `json:"votesProcessed"`
	Timestamp      time.Time `json:"timestamp"`
}

// Coordinator runs vote attempts.
type Coordinator struct {
	stg       *storage.Storage
	gate      *eligibility.Gate
	locks     *LockManager
	submitter *ledger.Submitter
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewCoordinator returns a Coordinator. m may be nil.
func NewCoordinator(stg *storage.Storage, gate *eligibility.Gate, locks *LockManager,
	submitter *ledger.Submitter, m *metrics.Metrics,
) *Coordinator {
	return &Coordinator{
		stg:       stg,
		gate:      gate,
		locks:     locks,
		submitter: submitter,
		metrics:   m,
		now:       time.Now,
	}
}

// Cast validates and submits a ballot. Every returned error is a
// failure.Error. On success exactly one final flag and one transaction
// record exist for the voter and no lock remains.
func (c *Coordinator) Cast(ctx context.Context, req *CastRequest) (*Receipt, error) {
	receipt, err := c.cast(ctx, req)
	if err != nil {
		c.metrics.IncVoteRejections(failure.KindOf(err).String())
		return nil, err
	}
	c.metrics.IncVotesCast()
	return receipt, nil
}

func (c *Coordinator) cast(ctx context.Context, req *CastRequest) (*Receipt, error) {
	if req.User == nil {
		return nil, failure.New(failure.Unauthenticated, "authentication required")
	}
	if req.ElectionID == "" {
		return nil, failure.New(failure.Validation, "missing election id")
	}
	votes, err := req.Ballot.Normalize()
	if err != nil {
		return nil, err
	}
	election, err := c.stg.Election(ctx, req.ElectionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, failure.New(failure.NotFound, "election %s not found", req.ElectionID)
		}
		return nil, failure.Wrap(failure.Fatal, err)
	}
	address, err := contractAddress(election, req.ContractAddress)
	if err != nil {
		return nil, err
	}
	if err := validateSelections(election, votes); err != nil {
		return nil, err
	}

	eligible, err := c.gate.CanVote(ctx, election.ID, req.User.Email)
	if err != nil {
		return nil, failure.Wrap(failure.Fatal, err)
	}
	if !eligible {
		return nil, failure.ErrNotEligible
	}
	now := c.now()
	if !election.HasStarted(now) {
		return nil, failure.ErrNotStarted
	}
	if election.HasEnded(now) {
		return nil, failure.ErrEnded
	}

	lock, err := c.locks.Acquire(ctx, election.ID, req.User.ID)
	if err != nil {
		var fe *failure.Error
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, failure.Wrap(failure.Fatal, err)
	}
	txHash, err := c.submitter.Submit(ctx, address, votes)
	if err != nil {
		lock.Release(ctx)
		log.Warnw("vote submission failed", "election", election.ID, "error", err.Error())
		return nil, err
	}
	if err := c.locks.Commit(ctx, lock, txHash); err != nil {
		log.Errorw(err, "cannot record confirmed ballot for election "+election.ID)
		return nil, err
	}
	log.Infow("ballot recorded", "election", election.ID, "selections", len(votes))
	return &Receipt{
		TxHash:         txHash,
		VotesProcessed: len(votes),
		Timestamp:      c.now(),
	}, nil
}

// contractAddress resolves the ledger address of the ballot. A requested
// address must match the election's one.
func contractAddress(election *types.Election, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	switch {
	case election.ContractAddress == "" && requested == "":
		return "", failure.New(failure.Validation, "missing contract address")
	case requested == "":
		return election.ContractAddress, nil
	case !common.IsHexAddress(requested):
		return "", failure.New(failure.Validation, "invalid contract address %q", requested)
	case election.ContractAddress != "" &&
		common.HexToAddress(requested) != common.HexToAddress(election.ContractAddress):
		return "", failure.New(failure.Validation, "contract address does not match election %s", election.ID)
	}
	return requested, nil
}

// validateSelections checks the ballot against the positions known locally.
// Positions unknown locally are left to the ledger.
func validateSelections(election *types.Election, votes []types.VoteSelection) error {
	perPosition := make(map[string]map[string]struct{})
	for _, v := range votes {
		if perPosition[v.Position] == nil {
			perPosition[v.Position] = make(map[string]struct{})
		}
		if _, dup := perPosition[v.Position][v.Candidate]; dup {
			return failure.New(failure.Validation, "candidate %q selected twice for position %q", v.Candidate, v.Position)
		}
		perPosition[v.Position][v.Candidate] = struct{}{}
	}
	for name, selected := range perPosition {
		p := election.Position(name)
		if p != nil && p.BallotType == types.BallotSingle && len(selected) > 1 {
			return failure.New(failure.Validation, "position %q accepts a single candidate", name)
		}
	}
	return nil
}
