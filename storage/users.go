package storage

import (
	"context"

	"github.com/vocdoni/electiond/types"
)

func (s *Storage) User(ctx context.Context, userID string) (*types.User, error) {
	u := &types.User{}
	if err := s.getArtifact(ctx, UserKey(userID), u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		u.ID = userID
	}
	return u, nil
}

func (s *Storage) SetUser(ctx context.Context, u *types.User) error {
	if err := ValidateID("user id", u.ID); err != nil {
		return err
	}
	return s.setArtifact(ctx, UserKey(u.ID), u)
}

func (s *Storage) Session(ctx context.Context, token string) (*types.Session, error) {
	sess := &types.Session{}
	if err := s.getArtifact(ctx, SessionKey(token), sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Storage) SetSession(ctx context.Context, token string, sess *types.Session) error {
	return s.setArtifact(ctx, SessionKey(token), sess)
}

func (s *Storage) DeleteSession(ctx context.Context, token string) error {
	return s.kv.Delete(ctx, SessionKey(token))
}
