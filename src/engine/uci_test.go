package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacokyle01/game-review/src/models"
)

func TestParseBestMoveLine(t *testing.T) {
	best, ponder, ok := parseBestMoveLine("bestmove e2e4 ponder e7e5")
	require.True(t, ok)
	assert.Equal(t, "e2e4", best)
	assert.Equal(t, "e7e5", ponder)

	best, _, ok = parseBestMoveLine("bestmove (none)")
	require.True(t, ok)
	assert.Empty(t, best)

	_, _, ok = parseBestMoveLine("bestmove")
	assert.False(t, ok)
}

func TestParseInfoLineCP(t *testing.T) {
	update, ok := parseInfoLine("info depth 18 seldepth 24 multipv 2 score cp 34 nodes 123456 nps 999 pv e2e4 e7e5 g1f3")
	require.True(t, ok)
	require.NotNil(t, update.MultiPV)
	assert.Equal(t, 2, *update.MultiPV)
	require.NotNil(t, update.Depth)
	assert.Equal(t, 18, *update.Depth)
	require.NotNil(t, update.Score)
	assert.Equal(t, models.CP(34), *update.Score)
	require.NotNil(t, update.Nodes)
	assert.Equal(t, int64(123456), *update.Nodes)
	assert.Equal(t, []string{"e2e4", "e7e5", "g1f3"}, update.PV)
	assert.False(t, update.Bound)
}

func TestParseInfoLineMateAndBounds(t *testing.T) {
	update, ok := parseInfoLine("info depth 22 score mate -3 pv h7h8q")
	require.True(t, ok)
	assert.Nil(t, update.MultiPV)
	require.NotNil(t, update.Score)
	assert.Equal(t, models.MateIn(-3), *update.Score)

	update, ok = parseInfoLine("info depth 12 score cp 40 lowerbound nodes 10")
	require.True(t, ok)
	assert.True(t, update.Bound)
}

func TestParseInfoLineString(t *testing.T) {
	update, ok := parseInfoLine("info string NNUE evaluation using nn-1111.nnue score cp 5")
	require.True(t, ok)
	assert.Nil(t, update.Score)

	_, ok = parseInfoLine("readyok")
	assert.False(t, ok)
}

func TestGoCommand(t *testing.T) {
	tests := []struct {
		name string
		c    models.Constraints
		want string
	}{
		{"depth", models.Constraints{Depth: 12}, "go depth 12"},
		{"movetime", models.Constraints{MoveTime: 1500 * time.Millisecond}, "go movetime 1500"},
		{"both", models.Constraints{Depth: 20, MoveTime: time.Second}, "go depth 20 movetime 1000"},
		{"neither", models.Constraints{}, "go depth 16"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, goCommand(tt.c))
		})
	}
}

func TestSearchBound(t *testing.T) {
	assert.Equal(t, 30*time.Second, searchBound(models.Constraints{Depth: 10}, 30*time.Second))
	assert.Equal(t, 35*time.Second, searchBound(models.Constraints{MoveTime: 10 * time.Second}, 30*time.Second))
}

func TestClampWorkers(t *testing.T) {
	assert.Equal(t, 2, clampWorkers(0, 1, 8, 2))
	assert.Equal(t, 8, clampWorkers(50, 1, 8, 2))
	assert.Equal(t, 1, clampWorkers(4, 1, 1, 1))
	assert.Equal(t, 3, clampWorkers(3, 1, 8, 2))
}

func TestNameIdentityRoundTrip(t *testing.T) {
	for _, name := range Names() {
		id, err := name.Identity()
		require.NoError(t, err)
		assert.Equal(t, name, id.Name())
	}
	_, err := Name("komodo").Identity()
	assert.ErrorIs(t, err, ErrUnknownEngine)
}
