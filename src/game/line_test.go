package game

import (
	"testing"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestFromPGN(t *testing.T) {
	t.Parallel()
	pgn := `[Event "Casual"]
[White "a"]
[Black "b"]
[Result "*"]

1. e4 e5 2. Nf3 Nc6 *`

	line, err := FromPGN(pgn)
	require.NoError(t, err)
	require.Equal(t, 5, line.Len())

	assert.Equal(t, startFEN, line.Positions[0].FEN)
	assert.Empty(t, line.Positions[0].Move)
	assert.Equal(t, []string{"e2e4", "e7e5", "g1f3", "b8c6"}, line.Moves())
	assert.Equal(t, "Nf3", line.Positions[3].SAN)
	assert.Equal(t, chess.Black, line.Positions[1].Turn)
	assert.Equal(t, 20, line.Positions[0].LegalMoves)
	for i, p := range line.Positions {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, Key(p.FEN), p.Key)
	}
}

func TestFromPGNBareMovetext(t *testing.T) {
	t.Parallel()
	line, err := FromPGN("e4 e5 Nf3 Nf6")
	require.NoError(t, err)
	assert.Equal(t, []string{"e2e4", "e7e5", "g1f3", "g8f6"}, line.Moves())
}

func TestFromPGNRejectsIllegalMove(t *testing.T) {
	t.Parallel()
	_, err := FromPGN("e4 e4")
	assert.Error(t, err)
	_, err = FromPGN("   ")
	assert.ErrorIs(t, err, ErrEmptyGame)
}

func TestFromMovesDetectsCheckmate(t *testing.T) {
	t.Parallel()
	line, err := FromMoves("", []string{"f2f3", "e7e5", "g2g4", "d8h4"})
	require.NoError(t, err)
	require.Equal(t, 5, line.Len())

	last := line.Positions[4]
	assert.True(t, last.Checkmate)
	assert.True(t, last.Terminal())
	assert.Zero(t, last.LegalMoves)
	assert.Equal(t, chess.White, last.Turn)
	assert.Equal(t, "Qh4#", last.SAN)
}

func TestFromMovesFromFEN(t *testing.T) {
	t.Parallel()
	// white king a1 against king and queen, black to stalemate with Qb3
	line, err := FromMoves("7k/8/8/8/8/8/2q5/K7 b - - 0 1", []string{"c2b3"})
	require.NoError(t, err)
	require.Equal(t, 2, line.Len())
	assert.True(t, line.Positions[1].Stalemate)
	assert.False(t, line.Positions[1].Checkmate)

	_, err = FromMoves("", []string{"e2e5"})
	assert.Error(t, err)
	_, err = FromMoves("garbage", nil)
	assert.Error(t, err)
}

func TestFromFEN(t *testing.T) {
	t.Parallel()
	line, err := FromFEN("8/8/8/8/8/5k2/6q1/7K w - - 0 1")
	require.NoError(t, err)
	require.Equal(t, 1, line.Len())
	assert.True(t, line.Positions[0].Checkmate)
	assert.Nil(t, line.Moves())
}

func TestCommonPrefix(t *testing.T) {
	t.Parallel()
	base, err := FromMoves("", []string{"e2e4", "e7e5", "g1f3"})
	require.NoError(t, err)
	branch, err := FromMoves("", []string{"e2e4", "c7c5"})
	require.NoError(t, err)
	short, err := FromMoves("", []string{"e2e4"})
	require.NoError(t, err)

	assert.Equal(t, 4, CommonPrefix(base, base))
	assert.Equal(t, 2, CommonPrefix(base, branch))
	assert.Equal(t, 2, CommonPrefix(branch, base))
	assert.True(t, short.IsPrefixOf(base))
	assert.False(t, branch.IsPrefixOf(base))
	assert.False(t, base.IsPrefixOf(short))
}

func TestKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "8/8/8/8/8/8/8/K6k w - -", Key("8/8/8/8/8/8/8/K6k w - - 12 40"))
	assert.Equal(t, Key("8/8/8/8/8/8/8/K6k w - - 0 1"), Key("8/8/8/8/8/8/8/K6k w - - 99 120"))
}

func TestParse(t *testing.T) {
	t.Parallel()
	line, err := Parse("1. d4 d5", "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"d2d4", "d7d5"}, line.Moves())

	line, err = Parse("", "", []string{"c2c4"})
	require.NoError(t, err)
	assert.Equal(t, 2, line.Len())

	line, err = Parse("", startFEN, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, line.Len())

	_, err = Parse("", "", nil)
	assert.ErrorIs(t, err, ErrEmptyGame)
}
