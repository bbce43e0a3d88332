// Package failure defines the typed errors shared by the vote and results
// pipelines. Every error carries a Kind so callers can decide whether to
// retry, clean up or surface it without matching on error strings.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// Fatal is an unexpected internal failure.
	Fatal Kind = iota
	// Validation is a malformed or inconsistent request. No side effects.
	Validation
	// Timing means the election is not open for the requested operation.
	Timing
	// Unauthenticated means no valid credentials were provided.
	Unauthenticated
	// NotEligible means the voter has no approved eligibility record.
	NotEligible
	// Forbidden means the requester may not access the resource yet.
	Forbidden
	// NotFound means the election or user does not exist.
	NotFound
	// Conflict means the voter has already voted.
	Conflict
	// Transient is a ledger error that may succeed if retried.
	Transient
	// LedgerWrite is a failed or unconfirmed vote transaction.
	LedgerWrite
)

var kindNames = map[Kind]string{
	Fatal:           "fatal",
	Validation:      "validation",
	Timing:          "timing",
	Unauthenticated: "unauthenticated",
	NotEligible:     "not_eligible",
	Forbidden:       "forbidden",
	NotFound:        "not_found",
	Conflict:        "conflict",
	Transient:       "transient",
	LedgerWrite:     "ledger_write",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is an error tagged with a Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a new failure of the given kind with a formatted message.
// The %w verb is honored.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with kind. It returns nil if err is nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of the outermost failure in err's chain, or Fatal
// if err carries no kind.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Fatal
}

// Is reports whether err is a failure of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Common failures. Use with Wrap or as sentinels with errors.Is.
var (
	ErrAlreadyVoted = &Error{Kind: Conflict, Err: errors.New("already voted")}
	ErrNotEligible  = &Error{Kind: NotEligible, Err: errors.New("not eligible to vote in this election")}
	ErrNotStarted   = &Error{Kind: Timing, Err: errors.New("election has not started")}
	ErrEnded        = &Error{Kind: Timing, Err: errors.New("election has ended")}
)
