package web3

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeChain is a Backend that executes the election contract ABI in memory.
type fakeChain struct {
	mu         sync.Mutex
	chainID    *big.Int
	positions  []string
	candidates map[string][]string
	counts     map[[2]string]uint64
	nonces     map[common.Address]uint64
	receipts   map[common.Hash]*types.Receipt
	sent       []*types.Transaction
	revert     bool
	callErr    error
}

var _ Backend = (*fakeChain)(nil)

func newFakeChain(chainID int64) *fakeChain {
	return &fakeChain{
		chainID:    big.NewInt(chainID),
		candidates: make(map[string][]string),
		counts:     make(map[[2]string]uint64),
		nonces:     make(map[common.Address]uint64),
		receipts:   make(map[common.Hash]*types.Receipt),
	}
}

func (f *fakeChain) addPosition(position string, candidates ...string) {
	f.positions = append(f.positions, position)
	f.candidates[position] = candidates
}

func (f *fakeChain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeChain) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callErr != nil {
		return nil, f.callErr
	}
	method, err := ElectionABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "getPositions":
		return method.Outputs.Pack(f.positions)
	case "getCandidates":
		return method.Outputs.Pack(f.candidates[args[0].(string)])
	case "getVoteCount":
		n := f.counts[[2]string{args[0].(string), args[1].(string)}]
		return method.Outputs.Pack(new(big.Int).SetUint64(n))
	}
	return nil, fmt.Errorf("method %s is not callable", method.Name)
}

func (f *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100000, nil
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2), nil
}

func (f *fakeChain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: big.NewInt(1)}, nil
}

func (f *fakeChain) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeChain) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[account], nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	from, err := types.Sender(types.LatestSignerForChainID(f.chainID), tx)
	if err != nil {
		return err
	}
	if tx.Nonce() != f.nonces[from] {
		return fmt.Errorf("nonce too low: have %d, want %d", tx.Nonce(), f.nonces[from])
	}
	f.nonces[from]++
	f.sent = append(f.sent, tx)

	receipt := &types.Receipt{TxHash: tx.Hash(), BlockNumber: big.NewInt(int64(len(f.sent)))}
	f.receipts[tx.Hash()] = receipt
	if f.revert {
		receipt.Status = types.ReceiptStatusFailed
		return nil
	}
	method, err := ElectionABI.MethodById(tx.Data()[:4])
	if err != nil {
		return err
	}
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		return err
	}
	positions, candidates := args[0].([]string), args[1].([]string)
	if len(positions) != len(candidates) {
		receipt.Status = types.ReceiptStatusFailed
		return nil
	}
	for i := range positions {
		f.counts[[2]string{positions[i], candidates[i]}]++
	}
	receipt.Status = types.ReceiptStatusSuccessful
	return nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeChain) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (f *fakeChain) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}
