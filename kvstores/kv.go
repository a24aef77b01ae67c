// Package kvstores holds the key-value backends the agenda persists its
// named records to.
package kvstores

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Record struct {
	Key   string
	Value []byte
}

// Store is a key-value persistence layer. Put writes all records of a batch
// or none of them.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, records ...Record) error
	Close() error
}

var (
	ErrNotFound      = errors.New("kvstores: record not found")
	ErrQuotaExceeded = errors.New("kvstores: record exceeds size quota")
)

type Options struct {
	Driver         string `doc:"persistence backend: memory, file, sqlite or redis" default:"file"`
	Path           string `doc:"file or sqlite database path"                        default:"agenda.json"`
	RedisURL       string `doc:"redis url, e.g. redis://:password@localhost:6379/0"  default:"redis://localhost:6379/0"`
	RedisPrefix    string `doc:"prefix prepended to redis keys"                      default:"agenda:"`
	MaxRecordBytes int    `doc:"reject records larger than this, 0 disables"         default:"0"`
}

// Open returns the backend selected by options.Driver.
func Open(ctx context.Context, options *Options) (Store, error) {
	switch strings.ToLower(options.Driver) {
	case "memory":
		return NewMemory(options.MaxRecordBytes), nil
	case "", "file":
		return NewFile(options.Path, options.MaxRecordBytes), nil
	case "sqlite":
		return OpenSQLite(options.Path, options.MaxRecordBytes)
	case "redis":
		return OpenRedis(ctx, options.RedisURL, options.RedisPrefix, options.MaxRecordBytes)
	default:
		return nil, fmt.Errorf("kvstores: unknown driver %q", options.Driver)
	}
}

func checkQuota(limit int, records []Record) error {
	if limit <= 0 {
		return nil
	}
	for _, r := range records {
		if len(r.Value) > limit {
			return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrQuotaExceeded, r.Key, len(r.Value), limit)
		}
	}
	return nil
}
