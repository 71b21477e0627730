package storage

import (
	"context"
)

// Driver names accepted by STORAGE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// KV is a durable string key/value bag. Implementations must make SetMany atomic:
// either every pair is written or none is.
type KV interface {
	// Get returns the stored value and true, or "" and false when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// Set writes a single key.
func Set(ctx context.Context, kv KV, key, value string) error {
	return kv.SetMany(ctx, map[string]string{key: value})
}
