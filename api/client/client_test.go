package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
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
	"github.com/vocdoni/electiond/types"
	"github.com/vocdoni/electiond/voting"
	"go.vocdoni.io/dvote/db/metadb"
)

const testContract = "0x00000000000000000000000000000000000000e1"

func TestClient(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	stg := storage.New(storage.NewDBKV(metadb.NewTest(t)))
	provider := ledgertest.NewProvider()
	l := ledgertest.New().AddPosition("President", "Alice", "Bob")
	provider.Deploy(testContract, l)
	gate := eligibility.New(stg)
	sessions := auth.NewSessionStore(stg)
	a, err := api.New(&api.APIConfig{
		Storage: stg,
		Voting: voting.NewCoordinator(stg, gate, voting.NewLockManager(stg, nil),
			ledger.NewSubmitter(provider, time.Second, nil), nil),
		Results:     results.New(provider, stg, gate, results.Config{}, nil),
		Auth:        sessions,
		Eligibility: gate,
	})
	c.Assert(err, qt.IsNil)
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	c.Assert(stg.SetElection(ctx, &types.Election{
		ID:              "e1",
		Title:           "Presidency",
		Positions:       []types.Position{{ID: "p1", Name: "President", BallotType: types.BallotSingle}},
		StartsAt:        time.Now().Add(-time.Hour),
		EndsAt:          time.Now().Add(time.Hour),
		CreatorID:       "alice",
		ContractAddress: testContract,
	}), qt.IsNil)
	c.Assert(stg.SetUser(ctx, &types.User{ID: "alice", Email: "alice@x.org"}), qt.IsNil)
	c.Assert(stg.SetEligibility(ctx, "e1", "alice@x.org",
		&types.EligibilityRecord{Status: types.EligibilityApproved}), qt.IsNil)
	token, err := sessions.NewSession(ctx, "alice", time.Hour)
	c.Assert(err, qt.IsNil)

	cli, err := New(srv.URL)
	c.Assert(err, qt.IsNil)

	// anonymous requests are rejected
	_, err = cli.CastVote(&types.VoteRequest{
		ElectionID: "e1",
		Ballot:     types.BallotInput{Shape: types.ShapeSingle, Single: types.VoteSelection{Position: "President", Candidate: "Bob"}},
	})
	var apiErr *Error
	c.Assert(errors.As(err, &apiErr), qt.IsTrue)
	c.Assert(apiErr.HTTPStatus, qt.Equals, http.StatusUnauthorized)
	c.Assert(apiErr.Code, qt.Equals, api.ErrUnauthorized.Code)

	cli.SetAuthToken(token)
	status, err := cli.Eligibility("e1")
	c.Assert(err, qt.IsNil)
	c.Assert(status.CanVote, qt.IsTrue)

	receipt, err := cli.CastVote(&types.VoteRequest{
		ElectionID:      "e1",
		ContractAddress: testContract,
		Ballot:          types.BallotInput{Shape: types.ShapeSingle, Single: types.VoteSelection{Position: "President", Candidate: "Bob"}},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(receipt.Success, qt.IsTrue)
	c.Assert(receipt.VotesProcessed, qt.Equals, 1)

	voted, err := cli.HasVoted("e1")
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsTrue)

	// the creator can read the results of an open election
	res, err := cli.Results("e1")
	c.Assert(err, qt.IsNil)
	c.Assert(res.TotalVotes, qt.Equals, 1)
	c.Assert(res.Results["p1"].Candidates[0].Name, qt.Equals, "Bob")
	c.Assert(res.Results["p1"].Candidates[0].Percentage, qt.Equals, "100.00")

	cli.SetAuthToken("")
	_, err = cli.Results("e1")
	c.Assert(errors.As(err, &apiErr), qt.IsTrue)
	c.Assert(apiErr.HTTPStatus, qt.Equals, http.StatusForbidden)
}

func TestClientUnreachable(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	host, err := url.Parse(srv.URL)
	c.Assert(err, qt.IsNil)
	srv.Close()

	cli := &HTTPclient{c: http.DefaultClient, host: host, retries: 1}
	_, _, err = cli.Request(HTTPGET, nil, nil, api.PingEndpoint)
	c.Assert(err, qt.ErrorMatches, "http request ultimately failed after retries: .*")
}
