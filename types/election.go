package types

import (
	"encoding/json"
	"time"
)

// BallotType defines how many candidates a voter may pick for a position.
type BallotType string

const (
	BallotSingle   BallotType = "single"
	BallotMultiple BallotType = "multiple"
	BallotRanked   BallotType = "ranked"
)

// Valid reports whether t is a known ballot type.
func (t BallotType) Valid() bool {
	switch t {
	case BallotSingle, BallotMultiple, BallotRanked:
		return true
	}
	return false
}

type Candidate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Photo       string `json:"photo,omitempty"`
}

type Position struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	BallotType BallotType  `json:"ballot_type"`
	Candidates []Candidate `json:"candidates"`
}

// Candidate returns the candidate with the given name, or nil.
func (p *Position) Candidate(name string) *Candidate {
	for i := range p.Candidates {
		if p.Candidates[i].Name == name {
			return &p.Candidates[i]
		}
	}
	return nil
}

// Election is the local description of an election. The ledger deployed at
// ContractAddress is the source of truth for votes; the rest is display
// metadata and the voting window.
type Election struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Positions       []Position `json:"positions"`
	StartsAt        time.Time  `json:"starts_at"`
	EndsAt          time.Time  `json:"ends_at"`
	CreatorID       string     `json:"creator_id"`
	ContractAddress string     `json:"contract_address"`
}

// Position returns the position with the given name, or nil.
func (e *Election) Position(name string) *Position {
	for i := range e.Positions {
		if e.Positions[i].Name == name {
			return &e.Positions[i]
		}
	}
	return nil
}

// HasStarted reports whether the voting window has opened at now.
func (e *Election) HasStarted(now time.Time) bool {
	return !now.Before(e.StartsAt)
}

// HasEnded reports whether the voting window has closed at now.
func (e *Election) HasEnded(now time.Time) bool {
	return now.After(e.EndsAt)
}

// IsOpen reports whether now is inside [StartsAt, EndsAt].
func (e *Election) IsOpen(now time.Time) bool {
	return e.HasStarted(now) && !e.HasEnded(now)
}

func (e *Election) String() string {
	data, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(data)
}

// User is an authenticated account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Session binds a bearer token to a user until ExpiresAt.
type Session struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
