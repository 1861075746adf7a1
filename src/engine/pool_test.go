package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacokyle01/game-review/src/engine"
	"github.com/jacokyle01/game-review/src/engine/enginetest"
	"github.com/jacokyle01/game-review/src/models"
)

func TestSpawnPoolHandshakeFailureReleasesEverything(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{FailHandshake: true})

	_, err := engine.SpawnPool(context.Background(), engine.PoolConfig{
		Binary:           "stockfish-17",
		Launch:           farm.Launch,
		HandshakeTimeout: time.Second,
		Logger:           zerolog.Nop(),
	}, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrEngineUnavailable)
	assert.Eventually(t, func() bool { return farm.Live() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestSpawnPoolLaunchFailureReleasesStartedWorkers(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{FailLaunches: 1})

	_, err := engine.NewSelector(testOptions(farm), supported()).SelectName(context.Background(), engine.Stockfish17, 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrEngineUnavailable)
	assert.Eventually(t, func() bool { return farm.Live() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestPoolTerminateIsIdempotent(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{})

	pool, err := engine.SpawnPool(context.Background(), engine.PoolConfig{
		Binary: "stockfish-16",
		Launch: farm.Launch,
		Options: []string{
			"setoption name Threads value 1",
		},
		Logger: zerolog.Nop(),
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Size())
	assert.Contains(t, farm.Commands(), "setoption name Threads value 1")

	require.NoError(t, pool.Terminate(context.Background()))
	require.NoError(t, pool.Terminate(context.Background()))
	assert.Equal(t, 0, pool.Size())
	assert.Equal(t, 0, farm.Live())
}

func TestCrashedWorkerIsRestartedOnce(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{})
	s := openSession(t, farm, testOptions(farm), engine.Stockfish11, 1)
	require.NoError(t, s.SetPosition(engine.Position{FEN: startFEN}))

	farm.Crash()
	require.Eventually(t, func() bool {
		return farm.Launched() == 2 && farm.Live() == 1
	}, 5*time.Second, 10*time.Millisecond)

	search, err := s.StartAnalysis(context.Background(), models.Constraints{Depth: 3})
	require.NoError(t, err)
	ev, err := search.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, ev.Final)

	farm.Crash()
	require.Eventually(t, func() bool { return s.Info().Workers == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, farm.Launched())

	_, err = s.StartAnalysis(context.Background(), models.Constraints{Depth: 3})
	assert.ErrorIs(t, err, engine.ErrEngineUnavailable)
	assert.Equal(t, engine.Idle, s.State())
}

func TestCrashDuringSearchFailsTheSearch(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{Hang: true})
	s := openSession(t, farm, testOptions(farm), engine.Stockfish11, 1)
	require.NoError(t, s.SetPosition(engine.Position{FEN: startFEN}))

	search, err := s.StartAnalysis(context.Background(), models.Constraints{Depth: 30})
	require.NoError(t, err)
	farm.Crash()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = search.Wait(ctx)
	assert.ErrorIs(t, err, engine.ErrEngineUnavailable)
	assert.ErrorIs(t, search.Err(), engine.ErrEngineUnavailable)
	assert.Equal(t, engine.Idle, s.State())
}

func TestWorkerIgnoringStopIsRecycled(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{Hang: true, IgnoreStop: true})
	opts := testOptions(farm)
	opts.DrainTimeout = 100 * time.Millisecond
	s := openSession(t, farm, opts, engine.Stockfish11, 1)
	require.NoError(t, s.SetPosition(engine.Position{FEN: startFEN}))

	search, err := s.StartAnalysis(context.Background(), models.Constraints{Depth: 30})
	require.NoError(t, err)
	s.Stop()
	<-search.Done()

	require.Eventually(t, func() bool { return farm.Launched() == 2 && farm.Live() == 1 }, 5*time.Second, 10*time.Millisecond)
}
