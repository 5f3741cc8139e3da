package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultKeyPrefix namespaces profile keys in Redis.
const DefaultKeyPrefix = "profile"

// RedisStore keeps one JSON value per record under "<prefix>:<id>".
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisUniversalClient creates a universal client from a redis:// URL.
func NewRedisUniversalClient(redisURL string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cant parse redis url: %w", err)
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{opts.Addr},
		DB:           opts.DB,
		Username:     opts.Username,
		Password:     opts.Password,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	}), nil
}

// OpenRedis connects to redisURL and checks the connection.
func OpenRedis(ctx context.Context, redisURL, prefix string) (*RedisStore, error) {
	client, err := NewRedisUniversalClient(redisURL)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(client, prefix), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":" + id
}

// Get returns the record of id.
func (s *RedisStore) Get(ctx context.Context, id string) (Record, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("redis get %s: %w", id, err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode profile %s: %w", id, err)
	}
	return r, nil
}

// Put inserts or replaces a record, keeping the stored creation time.
func (s *RedisStore) Put(ctx context.Context, r Record) error {
	if err := validate(r); err != nil {
		return err
	}

	var existing *Record
	if old, err := s.Get(ctx, r.ID); err == nil {
		existing = &old
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	r = stamp(r, existing, time.Now())

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", r.ID, err)
	}
	if err := s.client.Set(ctx, s.key(r.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.ID, err)
	}
	return nil
}

// Delete removes the record of id.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", id, err)
	}
	return nil
}

// List returns every record ordered by id. Undecodable values are skipped.
func (s *RedisStore) List(ctx context.Context) ([]Record, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(keys))
	prefix := s.prefix + ":"
	for _, k := range keys {
		r, err := s.Get(ctx, strings.TrimPrefix(k, prefix))
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	sortRecords(out)
	return out, nil
}

// keys collects every key under the prefix with SCAN.
func (s *RedisStore) keys(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.prefix+":*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// Prune deletes records last used before cutoff.
func (s *RedisStore) Prune(ctx context.Context, cutoff time.Time) ([]string, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, r := range records {
		if !r.LastUsed.Before(cutoff) {
			continue
		}
		if err := s.Delete(ctx, r.ID); err != nil {
			return ids, err
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
