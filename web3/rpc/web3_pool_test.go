package rpc

import (
	"context"
	"math/big"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	qt "github.com/frankban/quicktest"
)

type revertError struct{}

func (revertError) Error() string  { return "execution reverted" }
func (revertError) ErrorCode() int { return 3 }

// fakeEth serves the subset of the eth namespace used by the tests.
type fakeEth struct {
	chainID     uint64
	blockNumber uint64
	estimates   atomic.Int32
}

func (f *fakeEth) ChainId() (*hexutil.Big, error) {
	return (*hexutil.Big)(new(big.Int).SetUint64(f.chainID)), nil
}

func (f *fakeEth) BlockNumber() (hexutil.Uint64, error) {
	return hexutil.Uint64(f.blockNumber), nil
}

func (f *fakeEth) EstimateGas(_ map[string]any) (hexutil.Uint64, error) {
	f.estimates.Add(1)
	return 0, revertError{}
}

func newFakeNode(t *testing.T, eth *fakeEth) *httptest.Server {
	srv := gethrpc.NewServer()
	qt.Assert(t, srv.RegisterName("eth", eth), qt.IsNil)
	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		hs.Close()
		srv.Stop()
	})
	return hs
}

func TestWeb3Iterator(t *testing.T) {
	c := qt.New(t)
	it := NewWeb3Iterator(&Web3Endpoint{URI: "a"}, &Web3Endpoint{URI: "b"})
	it.Add(&Web3Endpoint{URI: "b"}, &Web3Endpoint{URI: "c"})
	c.Assert(it.Available(), qt.Equals, 3)

	seen := map[string]int{}
	for i := 0; i < 6; i++ {
		e, err := it.Next()
		c.Assert(err, qt.IsNil)
		seen[e.URI]++
	}
	c.Assert(seen, qt.DeepEquals, map[string]int{"a": 2, "b": 2, "c": 2})

	it.Disable("a")
	it.Disable("b")
	c.Assert(it.Available(), qt.Equals, 1)
	c.Assert(it.Disabled(), qt.Equals, 2)
	e, err := it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(e.URI, qt.Equals, "c")

	// once every endpoint is disabled they are enabled again
	it.Disable("c")
	e, err = it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(e, qt.IsNotNil)
	c.Assert(it.Available(), qt.Equals, 3)

	_, err = NewWeb3Iterator().Next()
	c.Assert(err, qt.IsNotNil)
}

func TestClientFailover(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	nodeA := newFakeNode(t, &fakeEth{chainID: 1337, blockNumber: 10})
	nodeB := newFakeNode(t, &fakeEth{chainID: 1337, blockNumber: 20})

	pool := NewWeb3Pool()
	defer pool.Close()
	chainID, err := pool.AddEndpoint(nodeA.URL)
	c.Assert(err, qt.IsNil)
	c.Assert(chainID, qt.Equals, uint64(1337))
	_, err = pool.AddEndpoint(nodeB.URL)
	c.Assert(err, qt.IsNil)
	c.Assert(pool.NumberOfEndpoints(1337, true), qt.Equals, 2)

	cli, err := pool.Client(1337)
	c.Assert(err, qt.IsNil)
	c.Assert(cli.ChainID(), qt.Equals, uint64(1337))

	nodeA.Close()
	for i := 0; i < 2; i++ {
		n, err := cli.BlockNumber(ctx)
		c.Assert(err, qt.IsNil)
		c.Assert(n, qt.Equals, uint64(20))
	}
	c.Assert(pool.NumberOfEndpoints(1337, true), qt.Equals, 1)
	c.Assert(pool.NumberOfEndpoints(1337, false), qt.Equals, 2)

	_, err = pool.Client(1)
	c.Assert(err, qt.IsNotNil)
}

func TestClientApplicationError(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	ethA := &fakeEth{chainID: 1337}
	ethB := &fakeEth{chainID: 1337}
	pool := NewWeb3Pool()
	defer pool.Close()
	_, err := pool.AddEndpoint(newFakeNode(t, ethA).URL)
	c.Assert(err, qt.IsNil)
	_, err = pool.AddEndpoint(newFakeNode(t, ethB).URL)
	c.Assert(err, qt.IsNil)
	cli, err := pool.Client(1337)
	c.Assert(err, qt.IsNil)

	// a revert is returned as is, without trying the other endpoint
	_, err = cli.EstimateGas(ctx, ethereum.CallMsg{})
	c.Assert(err, qt.ErrorMatches, "execution reverted")
	c.Assert(ethA.estimates.Load()+ethB.estimates.Load(), qt.Equals, int32(1))
	c.Assert(pool.NumberOfEndpoints(1337, true), qt.Equals, 2)
}
