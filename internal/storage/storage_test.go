package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockKV struct {
	mock.Mock
}

func (m *mockKV) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockKV) SetMany(ctx context.Context, values map[string]string) error {
	return m.Called(ctx, values).Error(0)
}

func (m *mockKV) Delete(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *mockKV) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	require.NoError(t, Set(ctx, kv, "k", "v"))
	v, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, kv.Delete(ctx, "k", "missing"))
	_, ok, _ = kv.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, kv.Len())
}

func TestFallback_PassesThroughWhileHealthy(t *testing.T) {
	ctx := context.Background()
	primary := new(mockKV)
	primary.On("Get", mock.Anything, "score").Return("7", true, nil)
	primary.On("SetMany", mock.Anything, map[string]string{"score": "8"}).Return(nil)

	fb := NewFallback(primary, zerolog.New(io.Discard), nil)

	v, ok, err := fb.Get(ctx, "score")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7", v)
	require.NoError(t, fb.SetMany(ctx, map[string]string{"score": "8"}))
	assert.False(t, fb.Degraded())
	primary.AssertExpectations(t)
}

func TestFallback_SwitchesToMemoryAfterFirstError(t *testing.T) {
	ctx := context.Background()
	primary := new(mockKV)
	primary.On("Get", mock.Anything, "score").Return("", false, errors.New("connection refused")).Once()

	calls := 0
	fb := NewFallback(primary, zerolog.New(io.Discard), func(error) { calls++ })

	v, ok, err := fb.Get(ctx, "score")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
	assert.True(t, fb.Degraded())

	// Later calls never reach the primary.
	require.NoError(t, fb.SetMany(ctx, map[string]string{"score": "1"}))
	v, ok, err = fb.Get(ctx, "score")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	require.NoError(t, fb.Delete(ctx, "score"))

	assert.Equal(t, 1, calls)
	primary.AssertNumberOfCalls(t, "Get", 1)
	primary.AssertNotCalled(t, "SetMany", mock.Anything, mock.Anything)
}

func TestFallback_CancelledCallerDoesNotDegrade(t *testing.T) {
	primary := new(mockKV)
	primary.On("Get", mock.Anything, "score").Return("", false, context.Canceled).Once()
	primary.On("SetMany", mock.Anything, map[string]string{"score": "8"}).Return(context.Canceled).Once()
	primary.On("Delete", mock.Anything, []string{"score"}).Return(errors.New("driver: bad connection")).Once()
	primary.On("Get", mock.Anything, "score").Return("7", true, nil).Once()

	calls := 0
	fb := NewFallback(primary, zerolog.New(io.Discard), func(error) { calls++ })

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := fb.Get(cancelled, "score")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, fb.SetMany(cancelled, map[string]string{"score": "8"}), context.Canceled)
	// The driver may wrap cancellation in its own error; the context decides.
	assert.Error(t, fb.Delete(cancelled, "score"))
	assert.False(t, fb.Degraded())
	assert.Zero(t, calls)

	v, ok, err := fb.Get(context.Background(), "score")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7", v, "durable value still served after an aborted request")
	primary.AssertExpectations(t)
}

func TestFallback_DeadlineFromPrimaryDoesNotDegrade(t *testing.T) {
	primary := new(mockKV)
	primary.On("SetMany", mock.Anything, mock.Anything).Return(fmt.Errorf("upsert 1 keys: %w", context.DeadlineExceeded)).Once()

	fb := NewFallback(primary, zerolog.New(io.Discard), nil)
	err := fb.SetMany(context.Background(), map[string]string{"score": "1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, fb.Degraded())
}
