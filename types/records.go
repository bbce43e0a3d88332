package types

import "time"

// EligibilityStatus is the state of a voter's eligibility record.
type EligibilityStatus string

const (
	EligibilityApproved    EligibilityStatus = "approved"
	EligibilityPreapproved EligibilityStatus = "preapproved"
	EligibilityDenied      EligibilityStatus = "denied"
)

// CanVote reports whether the status allows casting a ballot.
func (s EligibilityStatus) CanVote() bool {
	return s == EligibilityApproved || s == EligibilityPreapproved
}

// EligibilityRecord is stored under eligibility:{electionId}:{email}.
type EligibilityRecord struct {
	Status    EligibilityStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// VoteStatus is the state carried by ballot lock and final vote flag records.
type VoteStatus string

const (
	VotePending   VoteStatus = "pending"
	VoteCompleted VoteStatus = "completed"
)

// VoteRecord is the value of both the ballot lock (pending) and the final
// vote flag (completed). It never carries a transaction hash.
type VoteRecord struct {
	Status    VoteStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// VoteTx is stored under vote:tx:{electionId}:{txHash}. It never carries a
// user identifier.
type VoteTx struct {
	ElectionID string    `json:"electionId"`
	Timestamp  time.Time `json:"timestamp"`
}
