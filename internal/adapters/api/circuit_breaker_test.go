package api_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/marketscan-go/internal/adapters/api"
	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
)

var errBoom = errors.New("boom")

func newBreaker(clock shared.Clock) *api.CircuitBreaker {
	return api.NewCircuitBreaker("market-read", api.BreakerConfig{
		FailureThreshold: 3,
		Window:           time.Minute,
		OpenDuration:     30 * time.Second,
	}, clock)
}

func tripBreaker(t *testing.T, cb *api.CircuitBreaker) {
	t.Helper()
	for i := 0; i < 3; i++ {
		_ = cb.Call(context.Background(), func(context.Context) error { return errBoom })
	}
	require.Equal(t, api.CircuitOpen, cb.GetState())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	// Arrange
	clock := shared.NewMockClock(time.Now())
	cb := newBreaker(clock)

	// Act
	tripBreaker(t, cb)
	err := cb.Call(context.Background(), func(context.Context) error {
		t.Fatal("fn must not run while open")
		return nil
	})

	// Assert
	assert.ErrorIs(t, err, api.ErrCircuitOpen)
}

func TestCircuitBreaker_FailuresOutsideWindowDoNotAccumulate(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	cb := newBreaker(clock)

	for i := 0; i < 5; i++ {
		cb.RecordFailure(false)
		cb.RecordFailure(false)
		clock.Advance(2 * time.Minute)
	}

	assert.Equal(t, api.CircuitClosed, cb.GetState())
}

func TestCircuitBreaker_SingleProbeInHalfOpen(t *testing.T) {
	// Arrange
	clock := shared.NewMockClock(time.Now())
	cb := newBreaker(clock)
	tripBreaker(t, cb)
	clock.Advance(31 * time.Second)

	// Act: many callers race for admission
	var probes, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			probe, err := cb.Allow()
			switch {
			case err != nil:
				assert.ErrorIs(t, err, api.ErrCircuitOpen)
				rejected.Add(1)
			case probe:
				probes.Add(1)
			}
		}()
	}
	wg.Wait()

	// Assert
	assert.Equal(t, int32(1), probes.Load())
	assert.Equal(t, int32(63), rejected.Load())
	assert.Equal(t, api.CircuitHalfOpen, cb.GetState())
}

func TestCircuitBreaker_ProbeOutcomeDecidesState(t *testing.T) {
	clock := shared.NewMockClock(time.Now())

	t.Run("success closes", func(t *testing.T) {
		cb := newBreaker(clock)
		tripBreaker(t, cb)
		clock.Advance(31 * time.Second)

		err := cb.Call(context.Background(), func(context.Context) error { return nil })

		require.NoError(t, err)
		assert.Equal(t, api.CircuitClosed, cb.GetState())
		assert.Equal(t, 0, cb.GetFailureCount())
	})

	t.Run("failure reopens", func(t *testing.T) {
		cb := newBreaker(clock)
		tripBreaker(t, cb)
		clock.Advance(31 * time.Second)

		err := cb.Call(context.Background(), func(context.Context) error { return errBoom })

		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, api.CircuitOpen, cb.GetState())
		_, err = cb.Allow()
		assert.ErrorIs(t, err, api.ErrCircuitOpen, "open timer restarts on probe failure")
	})
}

func TestCircuitBreaker_CancelledProbeReleasesSlot(t *testing.T) {
	// Arrange
	clock := shared.NewMockClock(time.Now())
	cb := newBreaker(clock)
	tripBreaker(t, cb)
	clock.Advance(31 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Act
	err := cb.Call(ctx, func(ctx context.Context) error { return ctx.Err() })

	// Assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, api.CircuitHalfOpen, cb.GetState())
	probe, err := cb.Allow()
	require.NoError(t, err)
	assert.True(t, probe, "a new caller can take over the probe")
}

func TestCircuitBreaker_StateChangeListener(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	cb := newBreaker(clock)
	var transitions []string
	cb.OnStateChange(func(name string, from, to api.CircuitState) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	tripBreaker(t, cb)
	clock.Advance(31 * time.Second)
	_ = cb.Call(context.Background(), func(context.Context) error { return nil })

	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, transitions)
}

func TestBreakerSet_PreCreatesKnownClasses(t *testing.T) {
	set := api.NewBreakerSet(api.BreakerConfig{}, shared.NewMockClock(time.Now()), nil)

	snaps := set.Snapshots()

	for _, class := range api.KnownClasses() {
		assert.Equal(t, api.CircuitClosed, snaps[class].State, class)
	}
	assert.Same(t, set.Get(api.ClassMarketRead), set.Get(api.ClassMarketRead))
}
