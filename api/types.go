package api

import (
	"time"

	"github.com/vocdoni/electiond/types"
)

// VoteResponse is the body of a successful POST /vote.
type VoteResponse struct {
	Success        bool      `json:"success"`
	TxHash         string    `json:"txHash"`
	VotesProcessed int       `json:"votesProcessed"`
	Timestamp      time.Time `json:"timestamp"`
}

// EligibilityResponse is the body of GET /elections/{electionId}/eligibility.
type EligibilityResponse struct {
	ElectionID string                  `json:"electionId"`
	Status     types.EligibilityStatus `json:"status"`
	CanVote    bool                    `json:"canVote"`
	HasVoted   bool                    `json:"hasVoted"`
}

// VotedResponse is the body of GET /elections/{electionId}/voted.
type VotedResponse struct {
	ElectionID string `json:"electionId"`
	HasVoted   bool   `json:"hasVoted"`
}
