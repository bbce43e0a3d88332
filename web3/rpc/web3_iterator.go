package rpc

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Web3Endpoint struct contains all the required information about a web3
// provider based on its URI. It includes its chain ID, the URI and the
// client connected to it.
type Web3Endpoint struct {
	ChainID   uint64 `json:"chainId"`
	URI       string `json:"uri"`
	IsArchive bool   `json:"isArchive"`
	client    *ethclient.Client
}

// Web3Iterator struct is a pool of Web3Endpoint that allows to get the next
// available endpoint in a round-robin fashion. Endpoints that fail are
// disabled; once every endpoint is disabled they are all enabled again.
type Web3Iterator struct {
	nextIndex int
	available []*Web3Endpoint
	disabled  []*Web3Endpoint
	mtx       sync.Mutex
}

// NewWeb3Iterator creates a new Web3Iterator with the given endpoints.
func NewWeb3Iterator(endpoints ...*Web3Endpoint) *Web3Iterator {
	return &Web3Iterator{
		available: endpoints,
		disabled:  []*Web3Endpoint{},
	}
}

// Available returns the number of available endpoints.
func (w3i *Web3Iterator) Available() int {
	w3i.mtx.Lock()
	defer w3i.mtx.Unlock()
	return len(w3i.available)
}

// Disabled returns the number of disabled endpoints.
func (w3i *Web3Iterator) Disabled() int {
	w3i.mtx.Lock()
	defer w3i.mtx.Unlock()
	return len(w3i.disabled)
}

// Add adds new endpoints to the pool, skipping the URIs already known.
func (w3i *Web3Iterator) Add(endpoints ...*Web3Endpoint) {
	w3i.mtx.Lock()
	defer w3i.mtx.Unlock()
	for _, e := range endpoints {
		if w3i.find(e.URI) {
			continue
		}
		w3i.available = append(w3i.available, e)
	}
}

func (w3i *Web3Iterator) find(uri string) bool {
	for _, e := range w3i.available {
		if e.URI == uri {
			return true
		}
	}
	for _, e := range w3i.disabled {
		if e.URI == uri {
			return true
		}
	}
	return false
}

// Next returns the next available endpoint.
func (w3i *Web3Iterator) Next() (*Web3Endpoint, error) {
	w3i.mtx.Lock()
	defer w3i.mtx.Unlock()
	if len(w3i.available) == 0 {
		if len(w3i.disabled) == 0 {
			return nil, fmt.Errorf("no endpoints available")
		}
		// every endpoint failed, give them another chance
		w3i.available = w3i.disabled
		w3i.disabled = []*Web3Endpoint{}
		w3i.nextIndex = 0
	}
	if w3i.nextIndex >= len(w3i.available) {
		w3i.nextIndex = 0
	}
	endpoint := w3i.available[w3i.nextIndex]
	w3i.nextIndex++
	return endpoint, nil
}

// Disable moves the endpoint with the given URI to the disabled list.
func (w3i *Web3Iterator) Disable(uri string) {
	w3i.mtx.Lock()
	defer w3i.mtx.Unlock()
	for i, e := range w3i.available {
		if e.URI != uri {
			continue
		}
		w3i.available = append(w3i.available[:i], w3i.available[i+1:]...)
		w3i.disabled = append(w3i.disabled, e)
		if w3i.nextIndex > i {
			w3i.nextIndex--
		}
		return
	}
}
