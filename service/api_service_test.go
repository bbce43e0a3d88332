package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/electiond/api"
	"github.com/vocdoni/electiond/auth"
	"github.com/vocdoni/electiond/eligibility"
	"github.com/vocdoni/electiond/ledger"
	"github.com/vocdoni/electiond/ledger/ledgertest"
	"github.com/vocdoni/electiond/results"
	"github.com/vocdoni/electiond/storage"
	"github.com/vocdoni/electiond/voting"
	"go.vocdoni.io/dvote/db/metadb"
)

func testAPIConfig(t *testing.T) *api.APIConfig {
	stg := storage.New(storage.NewDBKV(metadb.NewTest(t)))
	provider := ledgertest.NewProvider()
	gate := eligibility.New(stg)
	return &api.APIConfig{
		Storage: stg,
		Voting: voting.NewCoordinator(stg, gate, voting.NewLockManager(stg, nil),
			ledger.NewSubmitter(provider, time.Second, nil), nil),
		Results: results.New(provider, stg, gate, results.Config{}, nil),
		Auth:    auth.NewSessionStore(stg),
	}
}

func ping(c *qt.C, as *APIService) int {
	resp, err := http.Get("http://" + as.Addr().String() + api.PingEndpoint)
	c.Assert(err, qt.IsNil)
	resp.Body.Close()
	return resp.StatusCode
}

func TestAPIService(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	// Port 0 lets the OS choose an available port
	apiService := NewAPI(testAPIConfig(t), "127.0.0.1", 0)
	c.Assert(apiService.Start(ctx), qt.IsNil)
	defer apiService.Stop()
	c.Assert(ping(c, apiService), qt.Equals, http.StatusOK)

	// Test starting an already running service
	c.Assert(apiService.Start(ctx), qt.ErrorMatches, "service already running")

	// Test stopping and restarting
	addr := apiService.Addr().String()
	apiService.Stop()
	c.Assert(apiService.Addr(), qt.IsNil)
	_, err := http.Get("http://" + addr + api.PingEndpoint)
	c.Assert(err, qt.IsNotNil)

	c.Assert(apiService.Start(ctx), qt.IsNil)
	c.Assert(ping(c, apiService), qt.Equals, http.StatusOK)
}

func TestAPIServiceInvalidConfig(t *testing.T) {
	c := qt.New(t)
	apiService := NewAPI(&api.APIConfig{}, "127.0.0.1", 0)
	c.Assert(apiService.Start(context.Background()), qt.ErrorMatches, "failed to create API: .*")
	// a failed start leaves the service stopped
	apiService.Stop()
	c.Assert(apiService.Addr(), qt.IsNil)
}
