package connectivity

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"fileshelf/internal/logging"
	"fileshelf/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_StartsReachable(t *testing.T) {
	m := NewMonitor(time.Second, logging.Discard(), nil)
	assert.True(t, m.IsReachable())
}

func TestMonitor_SetTransitions(t *testing.T) {
	m := NewMonitor(time.Second, logging.Discard(), nil)
	m.Set(false)
	assert.False(t, m.IsReachable())
	m.Set(false)
	assert.False(t, m.IsReachable())
	m.Set(true)
	assert.True(t, m.IsReachable())
}

func TestMonitor_CheckAllProbesMustPass(t *testing.T) {
	dbErr := errors.New("connection refused")
	var failing atomic.Bool
	m := NewMonitor(time.Second, logging.Discard(), map[string]Probe{
		"store": func(context.Context) error { return nil },
		"db": func(context.Context) error {
			if failing.Load() {
				return dbErr
			}
			return nil
		},
	})

	assert.True(t, m.Check(context.Background()))

	failing.Store(true)
	assert.False(t, m.Check(context.Background()))
	assert.False(t, m.IsReachable())

	failing.Store(false)
	assert.True(t, m.Check(context.Background()))
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	m := NewMonitor(10*time.Millisecond, logging.Discard(), map[string]Probe{
		"store": func(context.Context) error {
			calls.Add(1)
			return errors.New("down")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	assert.False(t, m.IsReachable())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type proberFunc func(ctx context.Context) error

func (f proberFunc) Probe(ctx context.Context) error { return f(ctx) }

func TestObjectStoreProbe_MissingBucketIsReachable(t *testing.T) {
	missing := ObjectStoreProbe(proberFunc(func(context.Context) error {
		return fmt.Errorf("head bucket: %w", storage.ErrBucketMissing)
	}))
	down := ObjectStoreProbe(proberFunc(func(context.Context) error {
		return errors.New("dial tcp: connection refused")
	}))

	m := NewMonitor(time.Second, logging.Discard(), map[string]Probe{"object_store": missing})
	assert.True(t, m.Check(context.Background()))
	assert.True(t, m.IsReachable())

	m = NewMonitor(time.Second, logging.Discard(), map[string]Probe{"object_store": down})
	assert.False(t, m.Check(context.Background()))
	assert.False(t, m.IsReachable())
}
