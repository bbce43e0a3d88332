// Package ledger abstracts the external election ledger: the contract that
// stores the authoritative vote counts and accepts ballots as transactions.
package ledger

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// Tx is a submitted vote transaction.
type Tx interface {
	// Hash returns the transaction identifier.
	Hash() string
	// Wait blocks until the transaction is confirmed once, or returns an
	// error if it fails or ctx is done.
	Wait(ctx context.Context) error
}

// Ledger is the election ledger deployed at a given address.
type Ledger interface {
	ListPositions(ctx context.Context) ([]string, error)
	ListCandidates(ctx context.Context, position string) ([]string, error)
	VoteCount(ctx context.Context, position, candidate string) (uint64, error)
	// CastVotes submits one ballot. positions and candidates are index
	// aligned and may repeat positions for multi-select ballots.
	CastVotes(ctx context.Context, positions, candidates []string) (Tx, error)
}

// Provider resolves the ledger deployed at an address.
type Provider interface {
	// Ledger returns ErrInvalidAddress if address is malformed.
	Ledger(address string) (Ledger, error)
}

// ErrInvalidAddress is returned by providers for malformed addresses.
var ErrInvalidAddress = errors.New("invalid contract address")

// rateLimitCode is the JSON-RPC error code used by RPC providers when the
// request rate is exceeded.
const rateLimitCode = -32005

// rateLimitPatterns are matched against lowercased error messages.
var rateLimitPatterns = []string{
	"too many requests",
	"rate limit",
	"ratelimit",
	"limit exceeded",
	"request limit",
}

// IsRateLimited reports whether err looks like a rate limit response from
// the ledger transport.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	// local deadlines say nothing about the provider
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == rateLimitCode {
		return true
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range rateLimitPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
