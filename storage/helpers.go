package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Artifact encoding/decoding. Values are stored as JSON documents so other
// services sharing the store can read them.
func encodeArtifact(a any) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return data, nil
}

func decodeArtifact(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}

func (s *Storage) setArtifact(ctx context.Context, key string, a any) error {
	data, err := encodeArtifact(a)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, data)
}

// getArtifact decodes the value of key into out. It returns ErrNotFound if
// the key does not exist.
func (s *Storage) getArtifact(ctx context.Context, key string, out any) error {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	return decodeArtifact(data, out)
}

// exists reports whether key is present.
func (s *Storage) exists(ctx context.Context, key string) (bool, error) {
	if _, err := s.kv.Get(ctx, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
