package actuator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func levels(ts []Transition) []Level {
	out := make([]Level, len(ts))
	for i, t := range ts {
		out[i] = t.Level
	}
	return out
}

func TestNew_DrivesLow(t *testing.T) {
	line := NewSimulatedLine("strike")
	line.Set(High) //nolint:errcheck

	c, err := New(Options{Line: line})
	require.NoError(t, err)

	assert.Equal(t, Low, line.Level())
	assert.Equal(t, Locked, c.State())
	assert.Equal(t, DefaultHold, c.Hold())
}

func TestNew_RequiresLine(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNew_InitialLockFailure(t *testing.T) {
	line := NewSimulatedLine("strike")
	line.FailNext(Low, lockAttempts)

	_, err := New(Options{Line: line, RetryDelay: time.Millisecond})
	assert.ErrorIs(t, err, ErrLockFailed)
}

func TestUnlock_HighThenLowAfterHold(t *testing.T) {
	line := NewSimulatedLine("strike")
	const hold = 60 * time.Millisecond
	c, err := New(Options{Line: line, Hold: hold})
	require.NoError(t, err)

	require.NoError(t, c.Unlock(context.Background()))

	ts := line.Transitions()
	require.Equal(t, []Level{Low, High, Low}, levels(ts))

	held := ts[2].At.Sub(ts[1].At)
	assert.GreaterOrEqual(t, held, hold)
	assert.Less(t, held, hold+500*time.Millisecond)
	assert.Equal(t, Locked, c.State())
}

func TestUnlock_UsesConfiguredHold(t *testing.T) {
	line := NewSimulatedLine("strike")
	var got time.Duration
	c, err := New(Options{
		Line: line,
		Wait: func(_ context.Context, d time.Duration) { got = d },
	})
	require.NoError(t, err)

	require.NoError(t, c.Unlock(context.Background()))
	assert.Equal(t, 7*time.Second, got)
}

func TestUnlock_StateDuringHold(t *testing.T) {
	line := NewSimulatedLine("strike")
	var during State
	var c *Controller
	c, err := New(Options{
		Line: line,
		Wait: func(context.Context, time.Duration) { during = c.State() },
	})
	require.NoError(t, err)

	require.NoError(t, c.Unlock(context.Background()))
	assert.Equal(t, Unlocked, during)
	assert.Equal(t, Locked, c.State())
}

func TestUnlock_CancelLocksEarly(t *testing.T) {
	line := NewSimulatedLine("strike")
	c, err := New(Options{Line: line, Hold: 10 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = c.Unlock(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, Low, line.Level())
	assert.Equal(t, Locked, c.State())
}

func TestUnlock_PanicInHoldStillLocks(t *testing.T) {
	line := NewSimulatedLine("strike")
	c, err := New(Options{
		Line: line,
		Wait: func(context.Context, time.Duration) { panic("fault during hold") },
	})
	require.NoError(t, err)

	assert.PanicsWithValue(t, "fault during hold", func() {
		c.Unlock(context.Background()) //nolint:errcheck
	})
	assert.Equal(t, Low, line.Level())
	assert.Equal(t, []Level{Low, High, Low}, levels(line.Transitions()))

	// The controller is usable again after the panic.
	c.wait = func(context.Context, time.Duration) {}
	assert.NoError(t, c.Unlock(context.Background()))
}

func TestUnlock_ConcurrentReturnsBusy(t *testing.T) {
	line := NewSimulatedLine("strike")
	entered := make(chan struct{})
	release := make(chan struct{})
	c, err := New(Options{
		Line: line,
		Wait: func(context.Context, time.Duration) {
			close(entered)
			<-release
		},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstErr = c.Unlock(context.Background())
	}()

	<-entered
	assert.ErrorIs(t, c.Unlock(context.Background()), ErrBusy)
	close(release)
	wg.Wait()

	assert.NoError(t, firstErr)
	assert.Equal(t, []Level{Low, High, Low}, levels(line.Transitions()))
}

func TestUnlock_LockRetriedThenSucceeds(t *testing.T) {
	line := NewSimulatedLine("strike")
	c, err := New(Options{
		Line:       line,
		RetryDelay: time.Millisecond,
		Wait:       func(context.Context, time.Duration) { line.FailNext(Low, lockAttempts-1) },
	})
	require.NoError(t, err)

	assert.NoError(t, c.Unlock(context.Background()))
	assert.Equal(t, Low, line.Level())
	assert.Equal(t, Locked, c.State())
}

func TestUnlock_LockFailureSurfacedAndIndicated(t *testing.T) {
	line := NewSimulatedLine("strike")
	indicator := NewSimulatedLine("fault")
	c, err := New(Options{
		Line:       line,
		Indicator:  indicator,
		RetryDelay: time.Millisecond,
		Wait:       func(context.Context, time.Duration) { line.FailNext(Low, lockAttempts) },
	})
	require.NoError(t, err)

	err = c.Unlock(context.Background())
	assert.ErrorIs(t, err, ErrLockFailed)
	assert.Equal(t, Unlocked, c.State())
	assert.Equal(t, High, indicator.Level())
}

func TestUnlock_HighFailureStillLocks(t *testing.T) {
	line := NewSimulatedLine("strike")
	waited := false
	c, err := New(Options{
		Line: line,
		Wait: func(context.Context, time.Duration) { waited = true },
	})
	require.NoError(t, err)
	line.FailNext(High, 1)

	err = c.Unlock(context.Background())
	assert.ErrorIs(t, err, ErrUnlockFailed)
	assert.False(t, waited, "hold must not start when the strike did not release")
	assert.Equal(t, Low, line.Level())
	assert.Equal(t, Locked, c.State())
}

func TestClose_Locks(t *testing.T) {
	line := NewSimulatedLine("strike")
	c, err := New(Options{Line: line})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.Equal(t, Low, line.Level())
}

func TestOpen_Drivers(t *testing.T) {
	l, err := Open(DriverSimulated, "bench")
	require.NoError(t, err)
	assert.Equal(t, "bench", l.Name())

	_, err = Open("relay-board", "x")
	assert.True(t, errors.Is(err, ErrUnknownDriver))
}

func TestStateAndLevelStrings(t *testing.T) {
	assert.Equal(t, "locked", Locked.String())
	assert.Equal(t, "unlocked", Unlocked.String())
	assert.Equal(t, "high", High.String())
	assert.Equal(t, "low", Low.String())

	var zero State
	assert.Equal(t, Locked, zero)
}
