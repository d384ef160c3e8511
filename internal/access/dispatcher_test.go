package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-access/internal/authz"
)

func TestDispatcher_DeliversToAllObservers(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	d := NewDispatcher(4, nil, a, b)

	require.NoError(t, d.Observe(context.Background(), Outcome{DoorID: "d", Decision: authz.Permitted}))
	require.NoError(t, d.Observe(context.Background(), Outcome{DoorID: "d", Decision: authz.Denied}))
	d.Close()

	for _, r := range []*recorder{a, b} {
		got := r.all()
		require.Len(t, got, 2)
		assert.Equal(t, authz.Permitted, got[0].Decision)
		assert.Equal(t, authz.Denied, got[1].Decision)
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	blocking := ObserverFunc(func(context.Context, Outcome) error {
		<-release
		return nil
	})
	d := NewDispatcher(1, nil, blocking)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Observe(context.Background(), Outcome{}))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond, "Observe must not block")
	assert.GreaterOrEqual(t, d.Dropped(), uint64(3))

	close(release)
	d.Close()
}

func TestDispatcher_SurvivesFailingObservers(t *testing.T) {
	after := &recorder{}
	d := NewDispatcher(4, nil,
		ObserverFunc(func(context.Context, Outcome) error { return errors.New("down") }),
		ObserverFunc(func(context.Context, Outcome) error { panic("bug") }),
		after,
	)

	require.NoError(t, d.Observe(context.Background(), Outcome{DoorID: "d"}))
	d.Close()
	d.Close()

	assert.Len(t, after.all(), 1)
}

func TestDispatcher_ObserverContextOutlivesCaller(t *testing.T) {
	var ctxErr error
	d := NewDispatcher(1, nil, ObserverFunc(func(ctx context.Context, _ Outcome) error {
		ctxErr = ctx.Err()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Observe(ctx, Outcome{}))
	d.Close()

	assert.NoError(t, ctxErr)
}
