package datastores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gerry02/agenda-app/kvstores"
)

// Keys of the records the agenda is persisted under.
const (
	KeyContacts     = "contacts"
	KeyAppointments = "appointments"
	KeySequences    = "sequences"
)

// Named is a value to be persisted under Key.
type Named struct {
	Key   string
	Value any
}

// Adapter reads and writes the agenda's named records as JSON.
type Adapter struct {
	KV     kvstores.Store
	Logger *slog.Logger
}

// Load decodes the record stored under key into v. It reports false when the
// record is absent, unreadable or corrupt; the last two are logged.
func (a *Adapter) Load(ctx context.Context, key string, v any) bool {
	data, err := a.KV.Get(ctx, key)
	switch {
	case errors.Is(err, kvstores.ErrNotFound):
		return false
	case err != nil:
		a.Logger.LogAttrs(ctx, slog.LevelWarn, "could not read record", slog.String("key", key), slog.Any("err", err))
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		a.Logger.LogAttrs(ctx, slog.LevelWarn, "ignoring corrupt record", slog.String("key", key), slog.Any("err", err))
		return false
	}
	return true
}

// Save encodes and writes all values in a single batch.
func (a *Adapter) Save(ctx context.Context, values ...Named) error {
	records := make([]kvstores.Record, 0, len(values))
	for _, v := range values {
		data, err := json.Marshal(v.Value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", v.Key, err)
		}
		records = append(records, kvstores.Record{Key: v.Key, Value: data})
	}
	return a.KV.Put(ctx, records...)
}
