package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vocdoni/electiond/failure"
)

// VoteSelection is the canonical form of a vote: one candidate picked for
// one position. Multi-select positions produce one selection per candidate.
type VoteSelection struct {
	Position  string `json:"position"`
	Candidate string `json:"candidate"`
}

// BallotShape identifies which of the accepted payload shapes a ballot was
// submitted with.
type BallotShape int

const (
	// ShapePairs is an explicit list of {position, candidate} pairs.
	ShapePairs BallotShape = iota
	// ShapeParallel is two index-aligned lists of positions and selections,
	// where each selection is a candidate or a list of candidates.
	ShapeParallel
	// ShapeSingle is one {position, candidate} pair.
	ShapeSingle
)

func (s BallotShape) String() string {
	switch s {
	case ShapePairs:
		return "pairs"
	case ShapeParallel:
		return "parallel"
	case ShapeSingle:
		return "single"
	}
	return "unknown"
}

// BallotInput is a decoded vote payload in one of its accepted shapes. Only
// the fields for Shape are set. Normalize converts it to the canonical form.
type BallotInput struct {
	Shape      BallotShape
	Pairs      []VoteSelection
	Positions  []string
	Candidates [][]string
	Single     VoteSelection
}

// Normalize flattens the ballot into the list of selections sent to the
// ledger. Duplicated positions are kept for multi-select ballots.
func (b *BallotInput) Normalize() ([]VoteSelection, error) {
	var out []VoteSelection
	switch b.Shape {
	case ShapePairs:
		out = make([]VoteSelection, 0, len(b.Pairs))
		out = append(out, b.Pairs...)
	case ShapeParallel:
		if len(b.Positions) != len(b.Candidates) {
			return nil, failure.New(failure.Validation,
				"positions and candidates length mismatch (%d != %d)", len(b.Positions), len(b.Candidates))
		}
		for i, position := range b.Positions {
			if len(b.Candidates[i]) == 0 {
				return nil, failure.New(failure.Validation, "no candidate selected for position %q", position)
			}
			for _, candidate := range b.Candidates[i] {
				out = append(out, VoteSelection{Position: position, Candidate: candidate})
			}
		}
	case ShapeSingle:
		out = []VoteSelection{b.Single}
	default:
		return nil, failure.New(failure.Validation, "unknown ballot shape %d", b.Shape)
	}
	if len(out) == 0 {
		return nil, failure.New(failure.Validation, "no votes provided")
	}
	for i := range out {
		out[i].Position = strings.TrimSpace(out[i].Position)
		out[i].Candidate = strings.TrimSpace(out[i].Candidate)
		if out[i].Position == "" || out[i].Candidate == "" {
			return nil, failure.New(failure.Validation, "vote %d has an empty position or candidate", i)
		}
	}
	return out, nil
}

// VoteRequest is the body of POST /vote.
type VoteRequest struct {
	ElectionID      string
	ContractAddress string
	Ballot          BallotInput
}

type voteRequestJSON struct {
	ElectionID      string          `json:"electionId"`
	ContractAddress string          `json:"contractAddress"`
	Votes           []VoteSelection `json:"votes"`
	Positions       json.RawMessage `json:"positions"`
	Candidates      json.RawMessage `json:"candidates"`
	Position        string          `json:"position"`
	Candidate       string          `json:"candidate"`
}

// MarshalJSON always encodes the canonical pairs shape.
func (v VoteRequest) MarshalJSON() ([]byte, error) {
	votes, err := v.Ballot.Normalize()
	if err != nil {
		return nil, err
	}
	return json.Marshal(voteRequestJSON{
		ElectionID:      v.ElectionID,
		ContractAddress: v.ContractAddress,
		Votes:           votes,
	})
}

// UnmarshalJSON detects the payload shape. Explicit votes win over the
// legacy parallel arrays, which win over a single pair.
func (v *VoteRequest) UnmarshalJSON(data []byte) error {
	var raw voteRequestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return failure.New(failure.Validation, "malformed vote payload: %w", err)
	}
	v.ElectionID = strings.TrimSpace(raw.ElectionID)
	v.ContractAddress = strings.TrimSpace(raw.ContractAddress)

	switch {
	case len(raw.Votes) > 0:
		v.Ballot = BallotInput{Shape: ShapePairs, Pairs: raw.Votes}
	case !isEmptyJSON(raw.Positions):
		positions, scalar, err := decodeStringOrList(raw.Positions)
		if err != nil {
			return failure.New(failure.Validation, "invalid positions: %w", err)
		}
		candidates, err := decodeSelections(raw.Candidates, scalar)
		if err != nil {
			return failure.New(failure.Validation, "invalid candidates: %w", err)
		}
		v.Ballot = BallotInput{Shape: ShapeParallel, Positions: positions, Candidates: candidates}
	case raw.Position != "" || raw.Candidate != "":
		v.Ballot = BallotInput{Shape: ShapeSingle, Single: VoteSelection{
			Position:  raw.Position,
			Candidate: raw.Candidate,
		}}
	default:
		return failure.New(failure.Validation, "no votes provided")
	}
	return nil
}

func isEmptyJSON(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// decodeStringOrList decodes "a" or ["a", "b"]. The boolean is true when the
// input was a scalar string.
func decodeStringOrList(data json.RawMessage) ([]string, bool, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return []string{s}, true, nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, false, fmt.Errorf("expected a string or a list of strings")
	}
	return list, false, nil
}

// decodeSelections decodes the candidates of the parallel shape. When the
// positions were a single scalar, every candidate belongs to that position.
// Otherwise each element is a candidate or a list of candidates.
func decodeSelections(data json.RawMessage, singlePosition bool) ([][]string, error) {
	if isEmptyJSON(data) {
		return nil, fmt.Errorf("missing candidates")
	}
	if singlePosition {
		list, _, err := decodeStringOrList(data)
		if err == nil {
			return [][]string{list}, nil
		}
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return [][]string{{s}}, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("expected a string or a list")
	}
	out := make([][]string, len(elems))
	for i, elem := range elems {
		list, _, err := decodeStringOrList(elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = list
	}
	return out, nil
}
