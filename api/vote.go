package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vocdoni/electiond/failure"
	"github.com/vocdoni/electiond/types"
	"github.com/vocdoni/electiond/voting"
)

// vote casts a ballot for the authenticated user
// POST /vote
func (a *API) vote(w http.ResponseWriter, r *http.Request) {
	user, err := a.authenticate(r, false)
	if err != nil {
		writeFailure(w, err)
		return
	}
	req := &types.VoteRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		var fe *failure.Error
		if errors.As(err, &fe) {
			writeFailure(w, err)
			return
		}
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	receipt, err := a.voting.Cast(r.Context(), &voting.CastRequest{
		User:            user,
		ElectionID:      req.ElectionID,
		ContractAddress: req.ContractAddress,
		Ballot:          req.Ballot,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	httpWriteJSON(w, &VoteResponse{
		Success:        true,
		TxHash:         receipt.TxHash,
		VotesProcessed: receipt.VotesProcessed,
		Timestamp:      receipt.Timestamp,
	})
}
