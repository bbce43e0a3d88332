package api

import (
	"net/http"

	"github.com/vocdoni/electiond/failure"
	"github.com/vocdoni/electiond/log"
	"github.com/vocdoni/electiond/results"
)

// electionResults returns the tallies of an election. Results are public
// once the election has ended; before that only its creator can read them.
// GET /elections/{electionId}/results
func (a *API) electionResults(w http.ResponseWriter, r *http.Request) {
	election := a.electionFromURL(w, r)
	if election == nil {
		return
	}
	// an invalid token is treated as an anonymous request
	user, err := a.authenticate(r, true)
	if err != nil {
		log.Debugw("ignoring credentials on results request", "election", election.ID, "error", err.Error())
		user = nil
	}
	now := a.now()
	if !results.CanView(election, user, now) {
		writeFailure(w, failure.New(failure.Forbidden, "election %s has not ended", election.ID))
		return
	}
	res, err := a.results.Results(r.Context(), election, now)
	if err != nil {
		writeFailure(w, err)
		return
	}
	httpWriteJSON(w, res)
}

// electionEligibility returns the eligibility status of the caller.
// GET /elections/{electionId}/eligibility
func (a *API) electionEligibility(w http.ResponseWriter, r *http.Request) {
	user, err := a.authenticate(r, false)
	if err != nil {
		writeFailure(w, err)
		return
	}
	election := a.electionFromURL(w, r)
	if election == nil {
		return
	}
	status, err := a.eligibility.Status(r.Context(), election.ID, user.Email)
	if err != nil {
		writeFailure(w, err)
		return
	}
	voted, err := a.storage.HasVoted(r.Context(), election.ID, user.ID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	httpWriteJSON(w, &EligibilityResponse{
		ElectionID: election.ID,
		Status:     status,
		CanVote:    status.CanVote() && !voted && election.IsOpen(a.now()),
		HasVoted:   voted,
	})
}

// electionVoted reports whether the caller has a final vote flag.
// GET /elections/{electionId}/voted
func (a *API) electionVoted(w http.ResponseWriter, r *http.Request) {
	user, err := a.authenticate(r, false)
	if err != nil {
		writeFailure(w, err)
		return
	}
	election := a.electionFromURL(w, r)
	if election == nil {
		return
	}
	voted, err := a.storage.HasVoted(r.Context(), election.ID, user.ID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	httpWriteJSON(w, &VotedResponse{ElectionID: election.ID, HasVoted: voted})
}
