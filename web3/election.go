package web3

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/vocdoni/electiond/ledger"
	"github.com/vocdoni/electiond/log"
)

// ElectionContract is the binding to an election ledger contract.
type ElectionContract struct {
	c        *Contracts
	address  common.Address
	contract *bind.BoundContract
}

var _ ledger.Ledger = (*ElectionContract)(nil)

// Election returns the binding to the election contract at address.
// Bindings only depend on the address, so they are cached.
func (c *Contracts) Election(address string) (*ElectionContract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidAddress, address)
	}
	addr := common.HexToAddress(address)
	if e, ok := c.bindings.Get(addr); ok {
		return e, nil
	}
	e := &ElectionContract{
		c:        c,
		address:  addr,
		contract: bind.NewBoundContract(addr, ElectionABI, c.cli, c.cli, c.cli),
	}
	c.bindings.Add(addr, e)
	return e, nil
}

// Address returns the contract address.
func (e *ElectionContract) Address() common.Address {
	return e.address
}

func (e *ElectionContract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	var out []any
	if err := e.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s: unexpected %d return values", method, len(out))
	}
	return out, nil
}

// ListPositions returns the position names registered in the contract.
func (e *ElectionContract) ListPositions(ctx context.Context) ([]string, error) {
	out, err := e.call(ctx, "getPositions")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]string)).(*[]string), nil
}

// ListCandidates returns the candidate names of a position.
func (e *ElectionContract) ListCandidates(ctx context.Context, position string) ([]string, error) {
	out, err := e.call(ctx, "getCandidates", position)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]string)).(*[]string), nil
}

// VoteCount returns the number of votes of a candidate.
func (e *ElectionContract) VoteCount(ctx context.Context, position, candidate string) (uint64, error) {
	out, err := e.call(ctx, "getVoteCount", position, candidate)
	if err != nil {
		return 0, err
	}
	count := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if count == nil || !count.IsUint64() {
		return 0, fmt.Errorf("getVoteCount: count %v out of range", count)
	}
	return count.Uint64(), nil
}

// CastVotes sends a castVotes transaction signed with the account key.
func (e *ElectionContract) CastVotes(ctx context.Context, positions, candidates []string) (ledger.Tx, error) {
	e.c.txLock.Lock()
	defer e.c.txLock.Unlock()
	opts, err := e.c.authTransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create transact options: %w", err)
	}
	opts.Context = ctx
	tx, err := e.contract.Transact(opts, "castVotes", positions, candidates)
	if err != nil {
		return nil, fmt.Errorf("castVotes: %w", err)
	}
	log.Debugw("castVotes transaction sent", "contract", e.address.Hex(), "txHash", tx.Hash().Hex(), "nonce", tx.Nonce())
	return &voteTx{tx: tx, backend: e.c.cli}, nil
}

// voteTx is a castVotes transaction waiting to be mined.
type voteTx struct {
	tx      *types.Transaction
	backend bind.DeployBackend
}

func (t *voteTx) Hash() string {
	return t.tx.Hash().Hex()
}

// Wait blocks until the transaction is mined and checks its receipt status.
func (t *voteTx) Wait(ctx context.Context) error {
	receipt, err := bind.WaitMined(ctx, t.backend, t.tx)
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted in block %v", t.Hash(), receipt.BlockNumber)
	}
	return nil
}
