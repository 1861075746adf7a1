package engine_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacokyle01/game-review/src/engine"
	"github.com/jacokyle01/game-review/src/engine/enginetest"
)

// gatedSelector holds its first Select back until gate is closed.
type gatedSelector struct {
	inner *engine.Selector
	gate  chan struct{}
	calls atomic.Int32
}

func (g *gatedSelector) Select(ctx context.Context, id engine.Identity, workers int) (*engine.Session, error) {
	if g.calls.Add(1) == 1 {
		<-g.gate
	}
	return g.inner.Select(ctx, id, workers)
}

func identity(t *testing.T, name engine.Name) engine.Identity {
	t.Helper()
	id, err := name.Identity()
	require.NoError(t, err)
	return id
}

func TestSlotLatestSelectionWins(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{})
	gated := &gatedSelector{
		inner: engine.NewSelector(testOptions(farm), supported()),
		gate:  make(chan struct{}),
	}
	slot := engine.NewSlot(gated, zerolog.Nop())
	defer slot.Close(context.Background())

	sf17 := identity(t, engine.Stockfish17)
	first := make(chan error, 1)
	go func() {
		_, err := slot.Select(context.Background(), sf17, 2)
		first <- err
	}()
	require.Eventually(t, func() bool { return gated.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	second, err := slot.Select(context.Background(), identity(t, engine.Stockfish11), 1)
	require.NoError(t, err)
	close(gated.gate)

	assert.ErrorIs(t, <-first, engine.ErrSuperseded)
	assert.Same(t, second, slot.Current())
	assert.Equal(t, engine.Stockfish11, slot.Current().Name())
	assert.Eventually(t, func() bool { return farm.Live() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestSlotReplacesPreviousSession(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{})
	slot := engine.NewSlot(engine.NewSelector(testOptions(farm), supported()), zerolog.Nop())
	defer slot.Close(context.Background())

	old, err := slot.Select(context.Background(), identity(t, engine.Stockfish17), 2)
	require.NoError(t, err)
	next, err := slot.Select(context.Background(), identity(t, engine.Stockfish16_1Lite), 1)
	require.NoError(t, err)

	select {
	case <-old.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("replaced session was not shut down")
	}
	assert.Equal(t, engine.Terminated, old.State())
	assert.Same(t, next, slot.Current())
	assert.Eventually(t, func() bool { return farm.Live() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestSlotFailedSelectionKeepsPrevious(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{})
	slot := engine.NewSlot(engine.NewSelector(testOptions(farm), unsupported()), zerolog.Nop())
	defer slot.Close(context.Background())

	legacy, err := slot.Select(context.Background(), identity(t, engine.Stockfish11), 1)
	require.NoError(t, err)

	_, err = slot.Select(context.Background(), identity(t, engine.Stockfish17), 1)
	assert.ErrorIs(t, err, engine.ErrUnsupportedEnvironment)
	assert.Same(t, legacy, slot.Current())
	assert.Equal(t, engine.Idle, legacy.State())
}

func TestSlotCloseShutsCurrentDown(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{})
	slot := engine.NewSlot(engine.NewSelector(testOptions(farm), supported()), zerolog.Nop())

	s, err := slot.Select(context.Background(), identity(t, engine.Stockfish17Lite), 2)
	require.NoError(t, err)
	require.NoError(t, slot.Close(context.Background()))

	assert.Nil(t, slot.Current())
	assert.Equal(t, engine.Terminated, s.State())
	assert.Equal(t, 0, farm.Live())

	_, err = slot.Select(context.Background(), identity(t, engine.Stockfish11), 1)
	assert.ErrorIs(t, err, engine.ErrSuperseded)
	assert.Eventually(t, func() bool { return farm.Live() == 0 }, 5*time.Second, 10*time.Millisecond)
}
