// Package auth resolves bearer tokens to users. Sessions are issued by the
// login service and stored in the shared store as session:{token}.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vocdoni/electiond/failure"
	"github.com/vocdoni/electiond/storage"
	"github.com/vocdoni/electiond/types"
)

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*types.User, error)
}

// SessionStore is an Authenticator backed by the session and user records
// of the shared store.
type SessionStore struct {
	stg *storage.Storage
	now func() time.Time
}

var _ Authenticator = (*SessionStore)(nil)

func NewSessionStore(stg *storage.Storage) *SessionStore {
	return &SessionStore{stg: stg, now: time.Now}
}

// BearerToken extracts the token of an Authorization header value. It
// returns an empty string if the header is not a bearer credential.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate returns the user of a valid session. Unknown or expired
// tokens are Unauthenticated failures; a session of a deleted user is a
// NotFound failure.
func (s *SessionStore) Authenticate(ctx context.Context, token string) (*types.User, error) {
	if token == "" {
		return nil, failure.New(failure.Unauthenticated, "missing bearer token")
	}
	sess, err := s.stg.Session(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, failure.New(failure.Unauthenticated, "invalid or expired token")
		}
		return nil, failure.Wrap(failure.Fatal, err)
	}
	if !sess.ExpiresAt.IsZero() && s.now().After(sess.ExpiresAt) {
		return nil, failure.New(failure.Unauthenticated, "invalid or expired token")
	}
	user, err := s.stg.User(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, failure.New(failure.NotFound, "user %s not found", sess.UserID)
		}
		return nil, failure.Wrap(failure.Fatal, err)
	}
	return user, nil
}

// NewSession issues a token for userID valid for ttl.
func (s *SessionStore) NewSession(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	sess := &types.Session{UserID: userID, ExpiresAt: s.now().Add(ttl)}
	if err := s.stg.SetSession(ctx, token, sess); err != nil {
		return "", err
	}
	return token, nil
}

// Revoke deletes a session.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	return s.stg.DeleteSession(ctx, token)
}
