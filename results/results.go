// Package results aggregates the vote counts stored in the election ledger
// with the local turnout figures.
package results

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vocdoni/electiond/eligibility"
	"github.com/vocdoni/electiond/failure"
	"github.com/vocdoni/electiond/ledger"
	"github.com/vocdoni/electiond/metrics"
	"github.com/vocdoni/electiond/storage"
	"github.com/vocdoni/electiond/types"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultReadAttempts  = 3
	DefaultReadBaseDelay = time.Second
	DefaultReadPace      = 200 * time.Millisecond
)

// Config tunes the ledger reads.
type Config struct {
	// ReadAttempts is the total number of attempts of a rate limited read.
	ReadAttempts int
	// ReadBaseDelay is the delay before the first retry. It doubles on
	// every retry.
	ReadBaseDelay time.Duration
	// ReadPace is the delay between successive positions and successive
	// candidates.
	ReadPace time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.ReadAttempts <= 0 {
		out.ReadAttempts = DefaultReadAttempts
	}
	if out.ReadBaseDelay <= 0 {
		out.ReadBaseDelay = DefaultReadBaseDelay
	}
	if out.ReadPace < 0 {
		out.ReadPace = 0
	}
	return out
}

type CandidateResult struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Photo       string `json:"photo,omitempty"`
	Votes       uint64 `json:"votes"`
	Percentage  string `json:"percentage"`
}

type PositionResult struct {
	PositionName string            `json:"position_name"`
	BallotType   types.BallotType  `json:"ballot_type"`
	Candidates   []CandidateResult `json:"candidates"`
}

// Results of an election. Results is indexed by position id.
type Results struct {
	ElectionID        string                     `json:"election_id"`
	ElectionTitle     string                     `json:"election_title"`
	TotalVotes        int                        `json:"total_votes"`
	EligibleVoters    int                        `json:"eligible_voters"`
	TurnoutPercentage string                     `json:"turnout_percentage"`
	Results           map[string]*PositionResult `json:"results"`
	HasEnded          bool                       `json:"has_ended"`
}

// Aggregator builds election results. The ledger is the source of truth for
// positions, candidates and counts; local storage only provides display
// metadata and turnout.
type Aggregator struct {
	provider ledger.Provider
	stg      *storage.Storage
	gate     *eligibility.Gate
	conf     Config
	metrics  *metrics.Metrics
}

// New returns an Aggregator. m may be nil.
func New(provider ledger.Provider, stg *storage.Storage, gate *eligibility.Gate, conf Config, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		provider: provider,
		stg:      stg,
		gate:     gate,
		conf:     conf.withDefaults(),
		metrics:  m,
	}
}

// CanView reports whether user may see the results of the election at now.
// Results are public once the election has ended, and visible to the
// creator before. user may be nil.
func CanView(election *types.Election, user *types.User, now time.Time) bool {
	if election.HasEnded(now) {
		return true
	}
	return user != nil && user.ID != "" && user.ID == election.CreatorID
}

// ledgerPosition is a position as reported by the ledger.
type ledgerPosition struct {
	name       string
	candidates []string
	counts     []uint64
}

// Results reads the election tallies from the ledger and the turnout from
// the local store.
func (a *Aggregator) Results(ctx context.Context, election *types.Election, now time.Time) (*Results, error) {
	if election.ContractAddress == "" {
		return nil, failure.New(failure.Validation, "election %s has no contract address", election.ID)
	}
	l, err := a.provider.Ledger(election.ContractAddress)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidAddress) {
			return nil, failure.Wrap(failure.Validation, err)
		}
		return nil, failure.Wrap(failure.Fatal, err)
	}

	var (
		positions []ledgerPosition
		total     int
		eligible  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		positions, err = a.readLedger(gctx, l)
		return err
	})
	g.Go(func() error {
		var err error
		if total, err = a.stg.CountVoted(gctx, election.ID); err != nil {
			return failure.Wrap(failure.Fatal, fmt.Errorf("count votes: %w", err))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if eligible, err = a.gate.EligibleCount(gctx, election.ID); err != nil {
			return failure.Wrap(failure.Fatal, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Results{
		ElectionID:        election.ID,
		ElectionTitle:     election.Title,
		TotalVotes:        total,
		EligibleVoters:    eligible,
		TurnoutPercentage: percentage(uint64(total), eligible),
		Results:           merge(election, positions, total),
		HasEnded:          election.HasEnded(now),
	}, nil
}

// readLedger reads every position, its candidates and their counts, one
// call at a time.
func (a *Aggregator) readLedger(ctx context.Context, l ledger.Ledger) ([]ledgerPosition, error) {
	names, err := read(ctx, a, "positions", l.ListPositions)
	if err != nil {
		return nil, err
	}
	positions := make([]ledgerPosition, 0, len(names))
	for i, name := range names {
		if i > 0 {
			if err := a.pace(ctx); err != nil {
				return nil, err
			}
		}
		candidates, err := read(ctx, a, "candidates", func(ctx context.Context) ([]string, error) {
			return l.ListCandidates(ctx, name)
		})
		if err != nil {
			return nil, err
		}
		p := ledgerPosition{name: name, candidates: candidates, counts: make([]uint64, len(candidates))}
		for j, candidate := range candidates {
			if j > 0 {
				if err := a.pace(ctx); err != nil {
					return nil, err
				}
			}
			if p.counts[j], err = read(ctx, a, "vote count", func(ctx context.Context) (uint64, error) {
				return l.VoteCount(ctx, name, candidate)
			}); err != nil {
				return nil, err
			}
		}
		positions = append(positions, p)
	}
	return positions, nil
}

func (a *Aggregator) pace(ctx context.Context) error {
	if a.conf.ReadPace == 0 {
		return nil
	}
	t := time.NewTimer(a.conf.ReadPace)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// merge matches the ledger positions and candidates with the local
// metadata: by name, then by index, then with a synthesized id.
func merge(election *types.Election, positions []ledgerPosition, total int) map[string]*PositionResult {
	out := make(map[string]*PositionResult, len(positions))
	for i, lp := range positions {
		meta := election.Position(lp.name)
		if meta == nil && i < len(election.Positions) {
			meta = &election.Positions[i]
		}
		id := fmt.Sprintf("position_%d", i)
		ballotType := types.BallotSingle
		if meta != nil {
			if _, used := out[meta.ID]; meta.ID != "" && !used {
				id = meta.ID
			}
			if meta.BallotType.Valid() {
				ballotType = meta.BallotType
			}
		}
		pr := &PositionResult{
			PositionName: lp.name,
			BallotType:   ballotType,
			Candidates:   make([]CandidateResult, 0, len(lp.candidates)),
		}
		usedIDs := make(map[string]struct{}, len(lp.candidates))
		for j, name := range lp.candidates {
			cr := CandidateResult{
				ID:         fmt.Sprintf("%s_candidate_%d", id, j),
				Name:       name,
				Votes:      lp.counts[j],
				Percentage: percentage(lp.counts[j], total),
			}
			if c := candidateMeta(meta, name, j); c != nil {
				if _, used := usedIDs[c.ID]; c.ID != "" && !used {
					cr.ID = c.ID
				}
				cr.Description = c.Description
				cr.Photo = c.Photo
			}
			usedIDs[cr.ID] = struct{}{}
			pr.Candidates = append(pr.Candidates, cr)
		}
		sort.SliceStable(pr.Candidates, func(x, y int) bool {
			return pr.Candidates[x].Votes > pr.Candidates[y].Votes
		})
		out[id] = pr
	}
	return out
}

func candidateMeta(p *types.Position, name string, index int) *types.Candidate {
	if p == nil {
		return nil
	}
	if c := p.Candidate(name); c != nil {
		return c
	}
	if index < len(p.Candidates) {
		return &p.Candidates[index]
	}
	return nil
}

// percentage formats part/whole*100 with two decimals, or "0.00" if whole
// is zero.
func percentage(part uint64, whole int) string {
	if whole <= 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(part)/float64(whole)*100)
}
