package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis"
)

// scanBatch is the COUNT hint passed to every SCAN call.
const scanBatch = 200

// RedisKV implements KV on a Redis server, so several processes can share
// the same ballot locks and vote flags.
type RedisKV struct {
	cli *redis.Client
}

// NewRedisKV connects to the Redis server at url (redis://host:port/db).
func NewRedisKV(url string) (*RedisKV, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping().Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("cannot reach redis at %s: %w", opts.Addr, err)
	}
	return &RedisKV{cli: cli}, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.cli.WithContext(ctx).Get(key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := r.cli.WithContext(ctx).Set(key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.cli.WithContext(ctx).Del(key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (r *RedisKV) ScanPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	cli := r.cli.WithContext(ctx)
	match := escapeGlob(prefix) + "*"
	seen := make(map[string]struct{})
	var entries []Entry
	var cursor uint64
	for {
		keys, next, err := cli.Scan(cursor, match, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", prefix, err)
		}
		for _, k := range keys {
			// SCAN may return the same key more than once
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			v, err := cli.Get(k).Bytes()
			if err == redis.Nil {
				// deleted after the scan saw it
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("get %s: %w", k, err)
			}
			entries = append(entries, Entry{Key: k, Value: v})
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (r *RedisKV) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	ok, err := r.cli.WithContext(ctx).SetNX(key, value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}

func (r *RedisKV) Close() error {
	return r.cli.Close()
}

// escapeGlob escapes the characters with a special meaning in a SCAN MATCH
// pattern.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
