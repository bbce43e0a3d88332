package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/electiond/auth"
	"github.com/vocdoni/electiond/failure"
	"github.com/vocdoni/electiond/log"
	"github.com/vocdoni/electiond/storage"
	"github.com/vocdoni/electiond/types"
)

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
	log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// authenticate resolves the bearer token of the request. With optional set,
// a request without an Authorization header yields a nil user and no error.
func (a *API) authenticate(r *http.Request, optional bool) (*types.User, error) {
	header := r.Header.Get("Authorization")
	if header == "" && optional {
		return nil, nil
	}
	token := auth.BearerToken(header)
	if token == "" {
		return nil, failure.New(failure.Unauthenticated, "missing or malformed bearer token")
	}
	return a.auth.Authenticate(r.Context(), token)
}

// electionFromURL loads the election named by the URL parameter. It writes
// the error response and returns nil on failure.
func (a *API) electionFromURL(w http.ResponseWriter, r *http.Request) *types.Election {
	electionID := chi.URLParam(r, ElectionURLParam)
	if err := storage.ValidateID("election", electionID); err != nil {
		ErrMalformedElectionID.WithErr(err).Write(w)
		return nil
	}
	election, err := a.storage.Election(r.Context(), electionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrElectionNotFound.With(electionID).Write(w)
			return nil
		}
		writeFailure(w, err)
		return nil
	}
	return election
}
