// Package ledgertest provides an in-memory ledger for tests.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/electiond/ledger"
	"github.com/vocdoni/electiond/util"
)

// Method names accepted by FailReads and Calls.
const (
	MethodListPositions  = "ListPositions"
	MethodListCandidates = "ListCandidates"
	MethodVoteCount      = "VoteCount"
	MethodCastVotes      = "CastVotes"
)

// RateLimitError mimics the JSON-RPC error returned by rate limited RPC
// providers.
type RateLimitError struct{}

func (RateLimitError) Error() string  { return "429 Too Many Requests: request rate exceeded" }
func (RateLimitError) ErrorCode() int { return -32005 }

// Ballot is a ballot received by the ledger.
type Ballot struct {
	Hash       string
	Positions  []string
	Candidates []string
}

type failure struct {
	remaining int
	err       error
}

// Ledger is an in-memory ledger. Counts are updated when a cast transaction
// is confirmed.
type Ledger struct {
	mu         sync.Mutex
	positions  []string
	candidates map[string][]string
	counts     map[[2]string]uint64
	ballots    []Ballot
	calls      map[string]int
	failures   map[string]*failure
	waitErr    error

	// OnCast, if set, is called by CastVotes before the ballot is accepted.
	// A non-nil error is returned to the caller.
	OnCast func(ctx context.Context) error
}

var _ ledger.Ledger = (*Ledger)(nil)

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		candidates: make(map[string][]string),
		counts:     make(map[[2]string]uint64),
		calls:      make(map[string]int),
		failures:   make(map[string]*failure),
	}
}

// AddPosition registers a position and its candidates, in order.
func (l *Ledger) AddPosition(position string, candidates ...string) *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions = append(l.positions, position)
	l.candidates[position] = append(l.candidates[position], candidates...)
	return l
}

// SetCount sets the vote count of a candidate.
func (l *Ledger) SetCount(position, candidate string, n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[[2]string{position, candidate}] = n
}

// FailReads makes the next n calls of method fail with err.
func (l *Ledger) FailReads(method string, n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[method] = &failure{remaining: n, err: err}
}

// FailWait makes every cast transaction fail to confirm with err.
func (l *Ledger) FailWait(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waitErr = err
}

// Calls returns the number of calls made to method.
func (l *Ledger) Calls(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[method]
}

// Ballots returns the confirmed ballots.
func (l *Ledger) Ballots() []Ballot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Ballot(nil), l.ballots...)
}

// call records a call and returns the injected failure, if any.
func (l *Ledger) call(method string) error {
	l.calls[method]++
	if f := l.failures[method]; f != nil && f.remaining > 0 {
		f.remaining--
		return f.err
	}
	return nil
}

func (l *Ledger) ListPositions(_ context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.call(MethodListPositions); err != nil {
		return nil, err
	}
	return append([]string(nil), l.positions...), nil
}

func (l *Ledger) ListCandidates(_ context.Context, position string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.call(MethodListCandidates); err != nil {
		return nil, err
	}
	return append([]string(nil), l.candidates[position]...), nil
}

func (l *Ledger) VoteCount(_ context.Context, position, candidate string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.call(MethodVoteCount); err != nil {
		return 0, err
	}
	return l.counts[[2]string{position, candidate}], nil
}

func (l *Ledger) CastVotes(ctx context.Context, positions, candidates []string) (ledger.Tx, error) {
	if len(positions) != len(candidates) {
		return nil, errors.New("execution reverted: length mismatch")
	}
	l.mu.Lock()
	onCast := l.OnCast
	err := l.call(MethodCastVotes)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if onCast != nil {
		if err := onCast(ctx); err != nil {
			return nil, err
		}
	}
	hash := "0x" + util.RandomHex(32)
	return &tx{
		ledger: l,
		hash:   hash,
		ballot: Ballot{
			Hash:       hash,
			Positions:  append([]string(nil), positions...),
			Candidates: append([]string(nil), candidates...),
		},
	}, nil
}

type tx struct {
	ledger *Ledger
	hash   string
	ballot Ballot
}

func (t *tx) Hash() string {
	return t.hash
}

func (t *tx) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := t.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.waitErr != nil {
		return l.waitErr
	}
	l.ballots = append(l.ballots, t.ballot)
	for i := range t.ballot.Positions {
		l.counts[[2]string{t.ballot.Positions[i], t.ballot.Candidates[i]}]++
	}
	return nil
}

// Provider serves in-memory ledgers by address.
type Provider struct {
	mu      sync.Mutex
	ledgers map[common.Address]*Ledger
}

var _ ledger.Provider = (*Provider)(nil)

func NewProvider() *Provider {
	return &Provider{ledgers: make(map[common.Address]*Ledger)}
}

// Deploy registers l at address.
func (p *Provider) Deploy(address string, l *Ledger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ledgers[common.HexToAddress(address)] = l
}

func (p *Provider) Ledger(address string) (ledger.Ledger, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidAddress, address)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.ledgers[common.HexToAddress(address)]
	if !ok {
		return nil, fmt.Errorf("no contract code at %s", address)
	}
	return l, nil
}
