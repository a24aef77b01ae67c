package kvstores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements [Store] with one redis string per record.
type Redis struct {
	rdb      *redis.Client
	prefix   string
	maxBytes int
}

var _ Store = (*Redis)(nil)

func OpenRedis(ctx context.Context, url, prefix string, maxRecordBytes int) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("kvstores: redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("kvstores: redis ping: %w", err)
	}

	return &Redis{rdb: rdb, prefix: prefix, maxBytes: maxRecordBytes}, nil
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return value, err
}

func (s *Redis) Put(ctx context.Context, records ...Record) error {
	if err := checkQuota(s.maxBytes, records); err != nil {
		return err
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, r := range records {
			pipe.Set(ctx, s.prefix+r.Key, r.Value, 0)
		}
		return nil
	})
	return err
}

func (s *Redis) Close() error {
	return s.rdb.Close()
}
