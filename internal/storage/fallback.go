package storage

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Fallback routes calls to a primary KV until it fails once, then serves every
// later call from an empty in-memory bag for the rest of the process. Cancelled or
// expired caller contexts are not backend failures.
type Fallback struct {
	primary    KV
	memory     *Memory
	logger     zerolog.Logger
	onFallback func(err error)
	degraded   atomic.Bool
}

var _ KV = (*Fallback)(nil)

// NewFallback wraps primary. onFallback may be nil; it runs once, on the first failure.
func NewFallback(primary KV, logger zerolog.Logger, onFallback func(err error)) *Fallback {
	return &Fallback{
		primary:    primary,
		memory:     NewMemory(),
		logger:     logger.With().Str("component", "storage_fallback").Logger(),
		onFallback: onFallback,
	}
}

// Degraded reports whether the primary has been abandoned.
func (f *Fallback) Degraded() bool {
	return f.degraded.Load()
}

func (f *Fallback) Get(ctx context.Context, key string) (string, bool, error) {
	if !f.degraded.Load() {
		v, ok, err := f.primary.Get(ctx, key)
		if err == nil {
			return v, ok, nil
		}
		if callerGaveUp(ctx, err) {
			return "", false, err
		}
		f.degrade(err)
	}
	return f.memory.Get(ctx, key)
}

func (f *Fallback) SetMany(ctx context.Context, values map[string]string) error {
	if !f.degraded.Load() {
		err := f.primary.SetMany(ctx, values)
		if err == nil {
			return nil
		}
		if callerGaveUp(ctx, err) {
			return err
		}
		f.degrade(err)
	}
	return f.memory.SetMany(ctx, values)
}

func (f *Fallback) Delete(ctx context.Context, keys ...string) error {
	if !f.degraded.Load() {
		err := f.primary.Delete(ctx, keys...)
		if err == nil {
			return nil
		}
		if callerGaveUp(ctx, err) {
			return err
		}
		f.degrade(err)
	}
	return f.memory.Delete(ctx, keys...)
}

// Ping checks the primary even when degraded so health endpoints report the real backend.
func (f *Fallback) Ping(ctx context.Context) error {
	return f.primary.Ping(ctx)
}

// callerGaveUp reports a failure caused by the caller's context rather than the backend.
// Such errors are returned as-is and never trigger the fallback.
func callerGaveUp(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (f *Fallback) degrade(err error) {
	if !f.degraded.CompareAndSwap(false, true) {
		return
	}
	f.logger.Warn().Err(err).Msg("storage backend unavailable; continuing with in-memory session state")
	if f.onFallback != nil {
		f.onFallback(err)
	}
}
