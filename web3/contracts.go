package web3

import (
	"context"
	"crypto/ecdsa"
	_ "embed"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vocdoni/electiond/ledger"
	"github.com/vocdoni/electiond/log"
	"github.com/vocdoni/electiond/util"
	"github.com/vocdoni/electiond/web3/rpc"
)

const (
	// web3QueryTimeout bounds every read call to the contracts.
	web3QueryTimeout = 10 * time.Second
	// voteGasLimit is the gas limit of vote transactions.
	voteGasLimit = 10000000
	// bindingCacheSize is the number of election contract bindings kept.
	bindingCacheSize = 256
)

//go:embed election.abi.json
var electionABIJSON string

// ElectionABI is the ABI of the election ledger contract.
var ElectionABI = mustParseABI(electionABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid election ABI: %v", err))
	}
	return parsed
}

// Backend is the chain access required by the contract bindings.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Contracts gives access to the election contracts deployed in a network.
// It implements ledger.Provider.
type Contracts struct {
	ChainID  uint64
	web3pool *rpc.Web3Pool
	cli      Backend
	privKey  *ecdsa.PrivateKey
	address  common.Address
	bindings *lru.Cache[common.Address, *ElectionContract]

	// txLock serializes nonce assignment and submission of transactions
	// signed with the account key.
	txLock sync.Mutex
}

var _ ledger.Provider = (*Contracts)(nil)

// NewContracts creates a new Contracts instance with the given web3 endpoint.
func NewContracts(web3rpc string) (*Contracts, error) {
	w3pool := rpc.NewWeb3Pool()
	chainID, err := w3pool.AddEndpoint(web3rpc)
	if err != nil {
		return nil, fmt.Errorf("failed to add web3 endpoint: %w", err)
	}
	cli, err := w3pool.Client(chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	c := NewContractsWithBackend(chainID, cli)
	c.web3pool = w3pool
	return c, nil
}

// NewContractsWithBackend creates a new Contracts instance over an existing
// backend.
func NewContractsWithBackend(chainID uint64, backend Backend) *Contracts {
	bindings, err := lru.New[common.Address, *ElectionContract](bindingCacheSize)
	if err != nil {
		// only fails on a non-positive size
		panic(err)
	}
	return &Contracts{
		ChainID:  chainID,
		cli:      backend,
		bindings: bindings,
	}
}

// AddWeb3Endpoint adds a new web3 endpoint to the pool.
func (c *Contracts) AddWeb3Endpoint(web3rpc string) error {
	if c.web3pool == nil {
		return fmt.Errorf("contracts not backed by a web3 pool")
	}
	chainID, err := c.web3pool.AddEndpoint(web3rpc)
	if err != nil {
		return err
	}
	if chainID != c.ChainID {
		c.web3pool.DisableEndpoint(chainID, web3rpc)
		return fmt.Errorf("endpoint %s is on chain %d, expected %d", web3rpc, chainID, c.ChainID)
	}
	return nil
}

// SetAccountPrivateKey sets the private key to be used for signing transactions.
func (c *Contracts) SetAccountPrivateKey(hexPrivKey string) error {
	var err error
	c.privKey, err = crypto.HexToECDSA(util.TrimHex(hexPrivKey))
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}
	c.address = crypto.PubkeyToAddress(c.privKey.PublicKey)
	return nil
}

// AccountAddress returns the address of the account used to sign transactions.
func (c *Contracts) AccountAddress() common.Address {
	return c.address
}

// Close closes the web3 endpoints.
func (c *Contracts) Close() {
	if c.web3pool != nil {
		c.web3pool.Close()
	}
}

// Ledger returns the election contract at address as a ledger.Ledger.
func (c *Contracts) Ledger(address string) (ledger.Ledger, error) {
	return c.Election(address)
}

// authTransactOpts helper method creates the transact options with the private
// key configured. It sets the nonce, gas tip cap, and gas limit. If something
// goes wrong creating the signer, getting the nonce, or getting the gas
// price, it returns an error. The caller must hold txLock.
func (c *Contracts) authTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.privKey == nil {
		return nil, fmt.Errorf("no private key set")
	}
	bChainID := new(big.Int).SetUint64(c.ChainID)
	auth, err := bind.NewKeyedTransactorWithChainID(c.privKey, bChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	// set the nonce
	log.Debugw("getting nonce", "address", c.address.Hex())
	nonce, err := c.cli.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	auth.Nonce = new(big.Int).SetUint64(nonce)
	// set the gas tip cap
	if auth.GasTipCap, err = c.cli.SuggestGasTipCap(ctx); err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	// set the gas limit
	auth.GasLimit = voteGasLimit
	return auth, nil
}
