package tests

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/electiond/api"
	"github.com/vocdoni/electiond/api/client"
	"github.com/vocdoni/electiond/types"
)

func pairs(votes ...string) types.BallotInput {
	b := types.BallotInput{Shape: types.ShapePairs}
	for i := 0; i+1 < len(votes); i += 2 {
		b.Pairs = append(b.Pairs, types.VoteSelection{Position: votes[i], Candidate: votes[i+1]})
	}
	return b
}

func voteRequest(electionID string, ballot types.BallotInput) *types.VoteRequest {
	return &types.VoteRequest{ElectionID: electionID, ContractAddress: testContract, Ballot: ballot}
}

func assertAPIError(c *qt.C, err error, status, code int) {
	var apiErr *client.Error
	c.Assert(errors.As(err, &apiErr), qt.IsTrue, qt.Commentf("%v", err))
	c.Assert(apiErr.HTTPStatus, qt.Equals, status)
	c.Assert(apiErr.Code, qt.Equals, code)
}

func TestIntegration(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	nw := NewNetwork(t, 2)
	nw.CreateElection(c, "e1", "admin", time.Now().Add(time.Hour))

	admin := nw.AddVoter(c, "e1", "admin", "", 0)
	alice := nw.AddVoter(c, "e1", "alice", types.EligibilityApproved, 0)
	bob := nw.AddVoter(c, "e1", "bob", types.EligibilityPreapproved, 1)
	mallory := nw.AddVoter(c, "e1", "mallory", types.EligibilityDenied, 1)

	c.Run("cast votes", func(c *qt.C) {
		receipt, err := alice.CastVote(voteRequest("e1", pairs("President", "Alice", "Board", "Carol", "Board", "Dave")))
		c.Assert(err, qt.IsNil)
		c.Assert(receipt.VotesProcessed, qt.Equals, 3)

		// legacy parallel arrays are accepted too
		receipt, err = bob.CastVote(voteRequest("e1", types.BallotInput{
			Shape:      types.ShapeParallel,
			Positions:  []string{"President", "Board"},
			Candidates: [][]string{{"Bob"}, {"Carol"}},
		}))
		c.Assert(err, qt.IsNil)
		c.Assert(receipt.VotesProcessed, qt.Equals, 2)
	})

	c.Run("rejections", func(c *qt.C) {
		_, err := mallory.CastVote(voteRequest("e1", pairs("President", "Bob")))
		assertAPIError(c, err, http.StatusForbidden, api.ErrNotEligible.Code)

		// a second ballot is rejected by any replica
		alice2 := nw.Client(c, 1)
		alice2.SetAuthToken(tokenOf(c, nw, "alice"))
		_, err = alice2.CastVote(voteRequest("e1", pairs("President", "Bob")))
		assertAPIError(c, err, http.StatusBadRequest, api.ErrAlreadyVoted.Code)

		// single positions accept one candidate
		_, err = admin.CastVote(voteRequest("e1", pairs("President", "Alice", "President", "Bob")))
		assertAPIError(c, err, http.StatusBadRequest, api.ErrInvalidRequest.Code)
	})

	c.Run("results", func(c *qt.C) {
		anon := nw.Client(c, 0)
		_, err := anon.Results("e1")
		assertAPIError(c, err, http.StatusForbidden, api.ErrResultsNotAvailable.Code)

		res, err := admin.Results("e1")
		c.Assert(err, qt.IsNil)
		c.Assert(res.TotalVotes, qt.Equals, 2)
		c.Assert(res.EligibleVoters, qt.Equals, 2)
		c.Assert(res.TurnoutPercentage, qt.Equals, "100.00")
		board := res.Results["board"]
		c.Assert(board.Candidates[0].Name, qt.Equals, "Carol")
		c.Assert(board.Candidates[0].Votes, qt.Equals, uint64(2))
		c.Assert(board.Candidates[0].Percentage, qt.Equals, "100.00")
		c.Assert(board.Candidates[0].ID, qt.Equals, "board_candidate_0")
		president := res.Results["president"]
		c.Assert(president.Candidates, qt.HasLen, 2)
		c.Assert(president.Candidates[0].ID, qt.Equals, "alice")
		c.Assert(president.Candidates[0].Percentage, qt.Equals, "50.00")
	})

	c.Run("anonymity", func(c *qt.C) {
		entries, err := nw.KV.ScanPrefix(ctx, "vote:")
		c.Assert(err, qt.IsNil)
		hashes := map[string]bool{}
		for _, b := range nw.Ledger.Ballots() {
			hashes[b.Hash] = true
		}
		c.Assert(hashes, qt.HasLen, 2)
		for _, e := range entries {
			switch {
			case strings.HasPrefix(e.Key, "vote:tx:e1:"):
				c.Assert(hashes[strings.TrimPrefix(e.Key, "vote:tx:e1:")], qt.IsTrue, qt.Commentf("%s", e.Key))
				c.Assert(string(e.Value), qt.Not(qt.Contains), "alice")
				c.Assert(string(e.Value), qt.Not(qt.Contains), "bob")
			case strings.HasPrefix(e.Key, "vote:user:e1:"):
				for hash := range hashes {
					c.Assert(string(e.Value), qt.Not(qt.Contains), hash)
				}
			}
		}
	})
}

func tokenOf(c *qt.C, nw *Network, userID string) string {
	token, err := nw.Sessions.NewSession(context.Background(), userID, time.Hour)
	c.Assert(err, qt.IsNil)
	return token
}

func TestConcurrentVoters(t *testing.T) {
	c := qt.New(t)
	nw := NewNetwork(t, 3)
	nw.CreateElection(c, "e1", "admin", time.Now().Add(time.Hour))

	const voters = 12
	clients := make([]*client.HTTPclient, voters)
	for i := range clients {
		clients[i] = nw.AddVoter(c, "e1", fmt.Sprintf("voter%d", i), types.EligibilityApproved, i)
	}

	// every voter sends the same ballot three times at once to its replica
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted = map[int]int{}
	)
	for i, cli := range clients {
		i, cli := i, cli
		for j := 0; j < 3; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := cli.CastVote(voteRequest("e1", pairs("President", "Bob")))
				if err == nil {
					mu.Lock()
					accepted[i]++
					mu.Unlock()
				}
			}()
		}
	}
	wg.Wait()

	c.Assert(accepted, qt.HasLen, voters)
	for i, n := range accepted {
		c.Assert(n, qt.Equals, 1, qt.Commentf("voter %d", i))
	}
	c.Assert(nw.Ledger.Ballots(), qt.HasLen, voters)

	count, err := nw.Storage.CountVoted(context.Background(), "e1")
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, voters)
	locks, err := nw.KV.ScanPrefix(context.Background(), "vote:user:e1:")
	c.Assert(err, qt.IsNil)
	c.Assert(locks, qt.HasLen, voters, qt.Commentf("only final flags remain"))
}

func TestElectionClosedByAdmin(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	nw := NewNetwork(t, 2)
	nw.CreateElection(c, "e1", "admin", time.Now().Add(time.Hour))
	bob := nw.AddVoter(c, "e1", "bob", types.EligibilityApproved, 0)
	anon := nw.Client(c, 0)

	// replica 0 reads the open election
	_, err := anon.Results("e1")
	assertAPIError(c, err, http.StatusForbidden, api.ErrResultsNotAvailable.Code)
	status, err := bob.Eligibility("e1")
	c.Assert(err, qt.IsNil)
	c.Assert(status.CanVote, qt.IsTrue)

	// the election is closed through another handle on the shared store
	election, err := nw.Storage.Election(ctx, "e1")
	c.Assert(err, qt.IsNil)
	election.EndsAt = time.Now().Add(-time.Minute)
	c.Assert(nw.Storage.SetElection(ctx, election), qt.IsNil)

	_, err = bob.CastVote(voteRequest("e1", pairs("President", "Bob")))
	assertAPIError(c, err, http.StatusBadRequest, api.ErrElectionNotOpen.Code)
	c.Assert(nw.Ledger.Ballots(), qt.HasLen, 0)

	res, err := anon.Results("e1")
	c.Assert(err, qt.IsNil)
	c.Assert(res.HasEnded, qt.IsTrue)
}
