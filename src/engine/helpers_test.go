package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jacokyle01/game-review/src/engine"
	"github.com/jacokyle01/game-review/src/engine/enginetest"
	"github.com/jacokyle01/game-review/src/models"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func testOptions(farm *enginetest.Farm) engine.Options {
	return engine.Options{
		Launch:           farm.Launch,
		Resolve:          func(binary string) (string, error) { return binary, nil },
		AnalysisTimeout:  5 * time.Second,
		HandshakeTimeout: 2 * time.Second,
		ShutdownTimeout:  2 * time.Second,
		DrainTimeout:     500 * time.Millisecond,
		Logger:           zerolog.Nop(),
	}
}

func supported() engine.Probe {
	return engine.ProbeFunc(func() bool { return true })
}

func unsupported() engine.Probe {
	return engine.ProbeFunc(func() bool { return false })
}

// openSession starts name on farm and shuts it down when the test ends.
func openSession(t *testing.T, farm *enginetest.Farm, opts engine.Options, name engine.Name, workers int) *engine.Session {
	t.Helper()
	s, err := engine.NewSelector(opts, supported()).SelectName(context.Background(), name, workers)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func collect(t *testing.T, search *engine.Search) []models.Evaluation {
	t.Helper()
	var events []models.Evaluation
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-search.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("search did not finish")
			return nil
		}
	}
}

func sawCommand(farm *enginetest.Farm, cmd string) bool {
	for _, c := range farm.Commands() {
		if c == cmd {
			return true
		}
	}
	return false
}
