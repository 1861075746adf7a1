package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacokyle01/game-review/src/engine"
	"github.com/jacokyle01/game-review/src/engine/enginetest"
	"github.com/jacokyle01/game-review/src/models"
)

func TestEveryEngineDeliversOneFinalEvaluation(t *testing.T) {
	for _, name := range engine.Names() {
		name := name
		t.Run(string(name), func(t *testing.T) {
			t.Parallel()
			farm := enginetest.NewFarm(enginetest.Config{})
			s := openSession(t, farm, testOptions(farm), name, 0)

			require.NoError(t, s.SetPosition(engine.Position{FEN: startFEN}))
			search, err := s.StartAnalysis(context.Background(), models.Constraints{Depth: 6})
			require.NoError(t, err)

			events := collect(t, search)
			require.NotEmpty(t, events)
			finals := 0
			for _, ev := range events {
				assert.Equal(t, search.ID(), ev.RequestID)
				if ev.Final {
					finals++
				}
			}
			assert.Equal(t, 1, finals)

			last := events[len(events)-1]
			assert.True(t, last.Final)
			assert.Equal(t, enginetest.FirstMove(startFEN), last.BestMove)
			assert.Equal(t, enginetest.HashScore(startFEN), last.Score)
			assert.Equal(t, 6, last.Depth)
			assert.NoError(t, search.Err())

			// the session accepts the next request once the first completed
			next, err := s.StartAnalysis(context.Background(), models.Constraints{Depth: 3})
			require.NoError(t, err)
			assert.Greater(t, next.ID(), search.ID())
			ev, err := next.Wait(context.Background())
			require.NoError(t, err)
			assert.True(t, ev.Final)
			assert.Equal(t, engine.Idle, s.State())
		})
	}
}

func TestSearchReportsSideToMove(t *testing.T) {
	t.Parallel()
	const fen = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"
	farm := enginetest.NewFarm(enginetest.Config{
		Score: func(string) models.Score { return models.CP(-40) },
	})
	s := openSession(t, farm, testOptions(farm), engine.Stockfish11, 1)

	require.NoError(t, s.SetPosition(engine.Position{FEN: fen}))
	search, err := s.StartAnalysis(context.Background(), models.Constraints{Depth: 4})
	require.NoError(t, err)
	ev, err := search.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, fen, ev.FEN)
	assert.Equal(t, models.CP(-40), ev.Score)
	assert.Equal(t, models.CP(40), ev.WhiteScore())
}

func TestMultiPVIsConfiguredPerSearch(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{})
	s := openSession(t, farm, testOptions(farm), engine.Stockfish11, 1)

	require.NoError(t, s.SetPosition(engine.Position{FEN: startFEN}))
	search, err := s.StartAnalysis(context.Background(), models.Constraints{Depth: 4, MultiPV: 3})
	require.NoError(t, err)
	_, err = search.Wait(context.Background())
	require.NoError(t, err)

	assert.Contains(t, farm.Commands(), "setoption name MultiPV value 3")
	assert.Contains(t, farm.Commands(), "go depth 4")
}

func TestSetPositionRejectsBadFEN(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{})
	s := openSession(t, farm, testOptions(farm), engine.Stockfish11, 1)

	assert.Error(t, s.SetPosition(engine.Position{FEN: ""}))
	assert.Error(t, s.SetPosition(engine.Position{FEN: "not a fen"}))
	assert.Error(t, s.SetPosition(engine.Position{FEN: startFEN + "\nquit"}))
}

func TestStartAnalysisWithoutPosition(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{})
	s := openSession(t, farm, testOptions(farm), engine.Stockfish11, 1)

	_, err := s.StartAnalysis(context.Background(), models.Constraints{Depth: 4})
	assert.ErrorIs(t, err, engine.ErrInvalidState)
	assert.Equal(t, engine.Idle, s.State())
}

func TestSearchingRejectsSetPositionAndSecondStart(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{Hang: true})
	s := openSession(t, farm, testOptions(farm), engine.Stockfish17, 2)

	require.NoError(t, s.SetPosition(engine.Position{FEN: startFEN}))
	search, err := s.StartAnalysis(context.Background(), models.Constraints{Depth: 20})
	require.NoError(t, err)
	assert.Equal(t, engine.Searching, s.State())

	err = s.SetPosition(engine.Position{FEN: startFEN})
	assert.ErrorIs(t, err, engine.ErrInvalidState)
	var stateErr *engine.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, engine.Searching, stateErr.State)

	_, err = s.StartAnalysis(context.Background(), models.Constraints{Depth: 20})
	assert.ErrorIs(t, err, engine.ErrInvalidState)

	s.Stop()
	<-search.Done()
}

func TestStopEndsDeliveryImmediately(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{Hang: true})
	s := openSession(t, farm, testOptions(farm), engine.Stockfish11, 1)

	require.NoError(t, s.SetPosition(engine.Position{FEN: startFEN}))
	search, err := s.StartAnalysis(context.Background(), models.Constraints{Depth: 30})
	require.NoError(t, err)

	select {
	case ev := <-search.Events():
		assert.False(t, ev.Final)
	case <-time.After(5 * time.Second):
		t.Fatal("no partial evaluation")
	}

	s.Stop()
	_, ok := <-search.Events()
	assert.False(t, ok, "no evaluation may follow Stop")
	assert.ErrorIs(t, search.Err(), engine.ErrSearchCanceled)
	assert.Equal(t, engine.Idle, s.State())
	assert.Eventually(t, func() bool { return sawCommand(farm, "stop") }, 5*time.Second, 10*time.Millisecond)

	// stopping an idle session is a no-op
	s.Stop()
	assert.Equal(t, engine.Idle, s.State())

	// the single worker drains the stopped search and serves the next one
	next, err := s.StartAnalysis(context.Background(), models.Constraints{Depth: 30})
	require.NoError(t, err)
	s.Stop()
	_, err = next.Wait(context.Background())
	assert.ErrorIs(t, err, engine.ErrSearchCanceled)
}

func TestStopBeforeAnyEvent(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{Hang: true})
	s := openSession(t, farm, testOptions(farm), engine.Stockfish17, 2)

	require.NoError(t, s.SetPosition(engine.Position{FEN: startFEN}))
	search, err := s.StartAnalysis(context.Background(), models.Constraints{Depth: 30})
	require.NoError(t, err)
	s.Stop()

	for range search.Events() {
		t.Fatal("evaluation delivered after Stop")
	}
}

func TestAnalysisTimeout(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{Hang: true})
	opts := testOptions(farm)
	opts.AnalysisTimeout = 150 * time.Millisecond
	s := openSession(t, farm, opts, engine.Stockfish11, 1)

	require.NoError(t, s.SetPosition(engine.Position{FEN: startFEN}))
	search, err := s.StartAnalysis(context.Background(), models.Constraints{Depth: 40})
	require.NoError(t, err)

	_, err = search.Wait(context.Background())
	assert.ErrorIs(t, err, engine.ErrAnalysisTimeout)
	assert.Equal(t, engine.Idle, s.State())
}

func TestShutdownIsIdempotent(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{Hang: true})
	s, err := engine.NewSelector(testOptions(farm), supported()).SelectName(context.Background(), engine.Stockfish17, 3)
	require.NoError(t, err)
	require.Equal(t, 3, farm.Live())

	require.NoError(t, s.SetPosition(engine.Position{FEN: startFEN}))
	search, err := s.StartAnalysis(context.Background(), models.Constraints{Depth: 30})
	require.NoError(t, err)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, engine.Terminated, s.State())
	assert.Equal(t, 0, farm.Live())
	assert.ErrorIs(t, search.Err(), engine.ErrSearchCanceled)

	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Shutdown")
	}

	_, err = s.StartAnalysis(context.Background(), models.Constraints{Depth: 1})
	assert.ErrorIs(t, err, engine.ErrInvalidState)
	assert.ErrorIs(t, s.SetPosition(engine.Position{FEN: startFEN}), engine.ErrInvalidState)
}

func TestDesyncThresholdTerminatesSession(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{})
	opts := testOptions(farm)
	opts.DesyncThreshold = 3
	s := openSession(t, farm, opts, engine.Stockfish11, 1)

	for i := 0; i < 3; i++ {
		farm.Emit("bestmove e2e4")
	}

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session survived repeated desync")
	}
	assert.Equal(t, engine.Terminated, s.State())
	assert.Eventually(t, func() bool { return farm.Live() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestDesyncBelowThresholdIsTolerated(t *testing.T) {
	t.Parallel()
	farm := enginetest.NewFarm(enginetest.Config{})
	opts := testOptions(farm)
	opts.DesyncThreshold = 3
	s := openSession(t, farm, opts, engine.Stockfish11, 1)

	farm.Emit("bestmove e2e4")
	farm.Emit("info string idle chatter")
	farm.Emit("bestmove d2d4")

	assert.Never(t, func() bool {
		select {
		case <-s.Done():
			return true
		default:
			return false
		}
	}, 300*time.Millisecond, 20*time.Millisecond)
	assert.Equal(t, engine.Idle, s.State())
}
