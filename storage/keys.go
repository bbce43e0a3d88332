package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Key layout of the shared store. Identifiers are separated by ':' so they
// must not contain it themselves, see ValidateID.
//
//	election:{electionId}                              election document
//	eligibility:{electionId}:{email}                   eligibility record
//	vote:user:{electionId}:{userId}                    final vote flag
//	vote:user:{electionId}:{userId}:{ts}-{nonce}       ballot lock
//	vote:tx:{electionId}:{txHash}                      anonymized ballot record
//	user:{userId}                                      user profile
//	session:{token}                                    session token
const (
	keySep            = ":"
	electionPrefix    = "election:"
	eligibilityPrefix = "eligibility:"
	voteUserPrefix    = "vote:user:"
	voteTxPrefix      = "vote:tx:"
	userPrefix        = "user:"
	sessionPrefix     = "session:"
)

// ValidateID checks that an identifier can be embedded in a key.
func ValidateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("empty %s", kind)
	}
	if strings.Contains(id, keySep) {
		return fmt.Errorf("%s %q must not contain %q", kind, id, keySep)
	}
	return nil
}

// NormalizeEmail returns the canonical form of an email used in keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ElectionKey(electionID string) string {
	return electionPrefix + electionID
}

func EligibilityKey(electionID, email string) string {
	return EligibilityPrefix(electionID) + NormalizeEmail(email)
}

// EligibilityPrefix returns the prefix of every eligibility record of an
// election.
func EligibilityPrefix(electionID string) string {
	return eligibilityPrefix + electionID + keySep
}

// VoteFlagKey returns the key of the final vote flag, written once the
// ballot is confirmed on the ledger.
func VoteFlagKey(electionID, userID string) string {
	return voteUserPrefix + electionID + keySep + userID
}

// VoteLockPrefix returns the prefix shared by every ballot lock of a voter.
// It does not match the final flag key itself.
func VoteLockPrefix(electionID, userID string) string {
	return VoteFlagKey(electionID, userID) + keySep
}

// VoteLockKey returns a unique ballot lock key for a voter.
func VoteLockKey(electionID, userID string, ts time.Time, nonce string) string {
	return VoteLockPrefix(electionID, userID) + strconv.FormatInt(ts.UnixMilli(), 10) + "-" + nonce
}

// VoteUserPrefix returns the prefix of every vote flag and ballot lock of an
// election.
func VoteUserPrefix(electionID string) string {
	return voteUserPrefix + electionID + keySep
}

// VoteTxKey returns the key of the anonymized ballot record. It carries no
// voter identifier.
func VoteTxKey(electionID, txHash string) string {
	return VoteTxPrefix(electionID) + txHash
}

func VoteTxPrefix(electionID string) string {
	return voteTxPrefix + electionID + keySep
}

func UserKey(userID string) string {
	return userPrefix + userID
}

func SessionKey(token string) string {
	return sessionPrefix + token
}

// VoteUserKey is a parsed vote:user key.
type VoteUserKey struct {
	ElectionID string
	UserID     string
	// Lock is set for ballot lock keys and unset for final flags.
	Lock bool
}

// ParseVoteUserKey splits a vote:user key. Final flags have exactly two
// identifier segments, ballot locks have three.
func ParseVoteUserKey(key string) (VoteUserKey, bool) {
	rest, ok := strings.CutPrefix(key, voteUserPrefix)
	if !ok {
		return VoteUserKey{}, false
	}
	parts := strings.Split(rest, keySep)
	switch len(parts) {
	case 2:
		return VoteUserKey{ElectionID: parts[0], UserID: parts[1]}, true
	case 3:
		return VoteUserKey{ElectionID: parts[0], UserID: parts[1], Lock: true}, true
	default:
		return VoteUserKey{}, false
	}
}
