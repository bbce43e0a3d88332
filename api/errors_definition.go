//nolint:lll
package api

import (
	"fmt"
	"net/http"

	"github.com/vocdoni/electiond/failure"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 401, 403 or 404, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX
// If you notice there's a gap (say, error code 4010, 4011 and 4013 exist, 4012 is missing) DON'T fill in the gap,
// that code was used in the past for some error (not anymore) and shouldn't be reused.
// There's no correlation between Code and HTTP Status.
var (
	ErrResourceNotFound    = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody       = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedElectionID = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed election ID")}
	ErrElectionNotFound    = Error{Code: 40007, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("election not found")}
	ErrInvalidRequest      = Error{Code: 40008, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid request")}
	ErrUnauthorized        = Error{Code: 40009, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("unauthorized")}
	ErrElectionNotOpen     = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("election not open")}
	ErrAlreadyVoted        = Error{Code: 40011, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("already voted")}
	ErrNotEligible         = Error{Code: 40012, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("not eligible")}
	ErrResultsNotAvailable = Error{Code: 40013, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("results not available")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrLedgerWrite                = Error{Code: 50003, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("ledger transaction failed")}
	ErrLedgerUnavailable          = Error{Code: 50004, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("ledger unavailable")}
)

// failureErrors maps each failure kind to the API error reported for it.
var failureErrors = map[failure.Kind]Error{
	failure.Validation:      ErrInvalidRequest,
	failure.Timing:          ErrElectionNotOpen,
	failure.Unauthenticated: ErrUnauthorized,
	failure.NotEligible:     ErrNotEligible,
	failure.Forbidden:       ErrResultsNotAvailable,
	failure.NotFound:        ErrResourceNotFound,
	failure.Conflict:        ErrAlreadyVoted,
	failure.Transient:       ErrLedgerUnavailable,
	failure.LedgerWrite:     ErrLedgerWrite,
}
