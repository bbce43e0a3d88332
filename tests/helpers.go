// Package tests runs the whole vote flow over HTTP: API services, the
// typed client, the shared store and an in-memory ledger.
package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/electiond/api"
	"github.com/vocdoni/electiond/api/client"
	"github.com/vocdoni/electiond/auth"
	"github.com/vocdoni/electiond/eligibility"
	"github.com/vocdoni/electiond/ledger"
	"github.com/vocdoni/electiond/ledger/ledgertest"
	"github.com/vocdoni/electiond/results"
	"github.com/vocdoni/electiond/service"
	"github.com/vocdoni/electiond/storage"
	"github.com/vocdoni/electiond/types"
	"github.com/vocdoni/electiond/voting"
	"go.vocdoni.io/dvote/db/metadb"
)

const testContract = "0x00000000000000000000000000000000000000e1"

// Network is a set of API services sharing one store and one ledger, as
// several electiond replicas behind a load balancer would.
type Network struct {
	KV       storage.KV
	Storage  *storage.Storage
	Ledger   *ledgertest.Ledger
	Sessions *auth.SessionStore
	Services []*service.APIService
}

// NewNetwork starts n API services on random ports.
func NewNetwork(t *testing.T, n int) *Network {
	c := qt.New(t)
	kv := storage.NewDBKV(metadb.NewTest(t))
	l := ledgertest.New().
		AddPosition("President", "Alice", "Bob").
		AddPosition("Board", "Carol", "Dave", "Erin")
	provider := ledgertest.NewProvider()
	provider.Deploy(testContract, l)

	nw := &Network{KV: kv, Storage: storage.New(kv), Ledger: l}
	nw.Sessions = auth.NewSessionStore(nw.Storage)
	for i := 0; i < n; i++ {
		// each replica has its own storage handle and slots
		stg := storage.New(kv)
		gate := eligibility.New(stg)
		srv := service.NewAPI(&api.APIConfig{
			Storage: stg,
			Voting: voting.NewCoordinator(stg, gate, voting.NewLockManager(stg, nil),
				ledger.NewSubmitter(provider, 5*time.Second, nil), nil),
			Results: results.New(provider, stg, gate, results.Config{ReadPace: time.Millisecond}, nil),
			Auth:    auth.NewSessionStore(stg),
		}, "127.0.0.1", 0)
		c.Assert(srv.Start(context.Background()), qt.IsNil)
		t.Cleanup(srv.Stop)
		nw.Services = append(nw.Services, srv)
	}
	return nw
}

// CreateElection stores an election open until endsAt, created by creatorID.
func (n *Network) CreateElection(c *qt.C, id, creatorID string, endsAt time.Time) {
	c.Assert(n.Storage.SetElection(context.Background(), &types.Election{
		ID:    id,
		Title: "Election " + id,
		Positions: []types.Position{
			{ID: "president", Name: "President", BallotType: types.BallotSingle, Candidates: []types.Candidate{
				{ID: "alice", Name: "Alice"}, {ID: "bob", Name: "Bob"},
			}},
			{ID: "board", Name: "Board", BallotType: types.BallotMultiple},
		},
		StartsAt:        time.Now().Add(-time.Hour),
		EndsAt:          endsAt,
		CreatorID:       creatorID,
		ContractAddress: testContract,
	}), qt.IsNil)
}

// AddVoter registers a user with the given eligibility status and returns a
// client of the i-th service authenticated as that user.
func (n *Network) AddVoter(c *qt.C, electionID, userID string, status types.EligibilityStatus, i int) *client.HTTPclient {
	ctx := context.Background()
	email := userID + "@example.org"
	c.Assert(n.Storage.SetUser(ctx, &types.User{ID: userID, Email: email, Name: userID}), qt.IsNil)
	if status != "" {
		c.Assert(n.Storage.SetEligibility(ctx, electionID, email,
			&types.EligibilityRecord{Status: status, CreatedAt: time.Now()}), qt.IsNil)
	}
	token, err := n.Sessions.NewSession(ctx, userID, time.Hour)
	c.Assert(err, qt.IsNil)
	cli := n.Client(c, i)
	cli.SetAuthToken(token)
	return cli
}

// Client returns an anonymous client of the i-th service.
func (n *Network) Client(c *qt.C, i int) *client.HTTPclient {
	cli, err := client.New(fmt.Sprintf("http://%s", n.Services[i%len(n.Services)].Addr()))
	c.Assert(err, qt.IsNil)
	return cli
}
