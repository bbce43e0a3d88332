package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/vocdoni/electiond/log"
)

// Client struct implements bind.ContractBackend and bind.DeployBackend on
// top of a Web3Pool for a specific chainID. Each call is sent to the next
// available endpoint; endpoints that fail at the transport level are disabled
// and the call is repeated on the next one.
type Client struct {
	w3p     *Web3Pool
	chainID uint64
}

// ChainID returns the chain ID the client is bound to.
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// isApplicationError reports whether err was returned by the node itself
// (revert, invalid params...), so switching endpoints will not help. Rate
// limit errors are not application errors.
func isApplicationError(err error) bool {
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode() != rateLimitCode
	}
	var dataErr gethrpc.DataError
	return errors.As(err, &dataErr) || errors.Is(err, ethereum.NotFound)
}

// callEndpoints calls fn on the available endpoints until one succeeds, an
// application error is returned, or every endpoint has been tried.
func callEndpoints[T any](ctx context.Context, c *Client, method string, fn func(*ethclient.Client) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := c.w3p.NumberOfEndpoints(c.chainID, false)
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		endpoint, err := c.w3p.Endpoint(c.chainID)
		if err != nil {
			return zero, err
		}
		res, err := fn(endpoint.client)
		if err == nil {
			return res, nil
		}
		if isApplicationError(err) || errors.Is(err, context.Canceled) {
			return zero, err
		}
		log.Warnw("web3 endpoint failed, trying the next one",
			"chainID", c.chainID, "uri", endpoint.URI, "method", method, "error", err.Error())
		c.w3p.DisableEndpoint(c.chainID, endpoint.URI)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no endpoint found for chainID %d", c.chainID)
	}
	return zero, fmt.Errorf("%s failed on every endpoint: %w", method, lastErr)
}

// CodeAt method wraps the CodeAt method from the ethclient.Client.
func (c *Client) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return callEndpoints(ctx, c, "CodeAt", func(cli *ethclient.Client) ([]byte, error) {
		return cli.CodeAt(ctx, account, blockNumber)
	})
}

// CallContract method wraps the CallContract method from the ethclient.Client.
func (c *Client) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return callEndpoints(ctx, c, "CallContract", func(cli *ethclient.Client) ([]byte, error) {
		return cli.CallContract(ctx, call, blockNumber)
	})
}

// EstimateGas method wraps the EstimateGas method from the ethclient.Client.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return callEndpoints(ctx, c, "EstimateGas", func(cli *ethclient.Client) (uint64, error) {
		return cli.EstimateGas(ctx, msg)
	})
}

// SuggestGasPrice method wraps the SuggestGasPrice method from the ethclient.Client.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return callEndpoints(ctx, c, "SuggestGasPrice", func(cli *ethclient.Client) (*big.Int, error) {
		return cli.SuggestGasPrice(ctx)
	})
}

// SuggestGasTipCap method wraps the SuggestGasTipCap method from the ethclient.Client.
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return callEndpoints(ctx, c, "SuggestGasTipCap", func(cli *ethclient.Client) (*big.Int, error) {
		return cli.SuggestGasTipCap(ctx)
	})
}

// SendTransaction method wraps the SendTransaction method from the
// ethclient.Client. It is sent to a single endpoint and never repeated.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	endpoint, err := c.w3p.Endpoint(c.chainID)
	if err != nil {
		return err
	}
	return endpoint.client.SendTransaction(ctx, tx)
}

// HeaderByNumber method wraps the HeaderByNumber method from the ethclient.Client.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return callEndpoints(ctx, c, "HeaderByNumber", func(cli *ethclient.Client) (*types.Header, error) {
		return cli.HeaderByNumber(ctx, number)
	})
}

// PendingCodeAt method wraps the PendingCodeAt method from the ethclient.Client.
func (c *Client) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return callEndpoints(ctx, c, "PendingCodeAt", func(cli *ethclient.Client) ([]byte, error) {
		return cli.PendingCodeAt(ctx, account)
	})
}

// PendingNonceAt method wraps the PendingNonceAt method from the ethclient.Client.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return callEndpoints(ctx, c, "PendingNonceAt", func(cli *ethclient.Client) (uint64, error) {
		return cli.PendingNonceAt(ctx, account)
	})
}

// FilterLogs method wraps the FilterLogs method from the ethclient.Client.
func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return callEndpoints(ctx, c, "FilterLogs", func(cli *ethclient.Client) ([]types.Log, error) {
		return cli.FilterLogs(ctx, query)
	})
}

// SubscribeFilterLogs method wraps the SubscribeFilterLogs method from the ethclient.Client.
func (c *Client) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return callEndpoints(ctx, c, "SubscribeFilterLogs", func(cli *ethclient.Client) (ethereum.Subscription, error) {
		return cli.SubscribeFilterLogs(ctx, query, ch)
	})
}

// TransactionReceipt method wraps the TransactionReceipt method from the
// ethclient.Client. A missing receipt is reported as ethereum.NotFound, which
// bind.WaitMined treats as not mined yet.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return callEndpoints(ctx, c, "TransactionReceipt", func(cli *ethclient.Client) (*types.Receipt, error) {
		return cli.TransactionReceipt(ctx, txHash)
	})
}

// BlockNumber method wraps the BlockNumber method from the ethclient.Client.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return callEndpoints(ctx, c, "BlockNumber", func(cli *ethclient.Client) (uint64, error) {
		return cli.BlockNumber(ctx)
	})
}
