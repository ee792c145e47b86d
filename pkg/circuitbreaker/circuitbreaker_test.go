package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDependency = errors.New("dependency unavailable")

func failing(context.Context) error    { return errDependency }
func succeeding(context.Context) error { return nil }

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := New("roster")

	assert.Equal(t, "roster", cb.Name())
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Counts{}, cb.Counts())
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := New("roster", WithFailureThreshold(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := cb.Execute(ctx, failing)
		require.ErrorIs(t, err, errDependency)
	}

	assert.Equal(t, StateOpen, cb.State())

	// While open, calls are rejected without reaching the dependency.
	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailureStreak(t *testing.T) {
	cb := New("roster", WithFailureThreshold(3))
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failing))
	require.Error(t, cb.Execute(ctx, failing))
	require.NoError(t, cb.Execute(ctx, succeeding))
	require.Error(t, cb.Execute(ctx, failing))
	require.Error(t, cb.Execute(ctx, failing))

	// Never three in a row, so still closed.
	assert.Equal(t, StateClosed, cb.State())
	counts := cb.Counts()
	assert.Equal(t, 5, counts.Requests)
	assert.Equal(t, 4, counts.TotalFailures)
	assert.Equal(t, 2, counts.ConsecutiveFailures)
}

func TestCircuitBreaker_ClosesAfterProbeSuccesses(t *testing.T) {
	cb := New("roster",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithTimeout(20*time.Millisecond),
	)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failing))
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(30 * time.Millisecond)

	// First probe moves the breaker to half-open.
	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, StateHalfOpen, cb.State())

	// Second consecutive success closes it.
	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb := New("roster",
		WithFailureThreshold(1),
		WithTimeout(20*time.Millisecond),
	)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failing))
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(30 * time.Millisecond)

	require.Error(t, cb.Execute(ctx, failing))
	assert.Equal(t, StateOpen, cb.State())

	// The cooldown restarts from the failed probe.
	err := cb.Execute(ctx, succeeding)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenProbeBudget(t *testing.T) {
	cb := New("roster",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithTimeout(10*time.Millisecond),
		WithMaxHalfOpenRequests(1),
	)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failing))
	time.Sleep(20 * time.Millisecond)

	// A nested call while the probe slot is taken gets rejected.
	var nestedErr error
	err := cb.Execute(ctx, func(ctx context.Context) error {
		nestedErr = cb.Execute(ctx, succeeding)
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, nestedErr, ErrTooManyRequests)

	// Once the probe completes, the slot is free for the next one.
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IsFailurePredicate(t *testing.T) {
	cb := New("roster",
		WithFailureThreshold(2),
		WithIsFailure(func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}),
	)
	ctx := context.Background()

	// Canceled calls pass through without counting against the breaker.
	for i := 0; i < 5; i++ {
		err := cb.Execute(ctx, func(context.Context) error { return context.Canceled })
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Counts().TotalFailures)

	require.Error(t, cb.Execute(ctx, failing))
	require.Error(t, cb.Execute(ctx, failing))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	type change struct{ from, to State }
	var changes []change

	cb := New("roster",
		WithFailureThreshold(1),
		WithSuccessThreshold(1),
		WithTimeout(10*time.Millisecond),
		WithOnStateChange(func(name string, from, to State) {
			assert.Equal(t, "roster", name)
			changes = append(changes, change{from, to})
		}),
	)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failing))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Execute(ctx, succeeding))

	require.Len(t, changes, 3)
	assert.Equal(t, change{StateClosed, StateOpen}, changes[0])
	assert.Equal(t, change{StateOpen, StateHalfOpen}, changes[1])
	assert.Equal(t, change{StateHalfOpen, StateClosed}, changes[2])
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := New("roster", WithFailureThreshold(1))
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failing))
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Counts{}, cb.Counts())
	assert.NoError(t, cb.Execute(ctx, succeeding))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
