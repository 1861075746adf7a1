// Package game turns games from notnil/chess into immutable lines of
// positions the analysis pipeline can walk.
package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

var ErrEmptyGame = errors.New("game has no positions")

// Position is one board of a line. Move and SAN describe the move that led
// to it and are empty for the first position.
type Position struct {
	Index      int         `json:"index"`
	FEN        string      `json:"fen"`
	Key        string      `json:"-"`
	Turn       chess.Color `json:"-"`
	Move       string      `json:"move,omitempty"`
	SAN        string      `json:"san,omitempty"`
	LegalMoves int         `json:"-"`
	Checkmate  bool        `json:"checkmate,omitempty"`
	Stalemate  bool        `json:"stalemate,omitempty"`
}

// Terminal reports whether the game is over at this position.
func (p Position) Terminal() bool {
	return p.Checkmate || p.Stalemate
}

// Line is a snapshot of a game from its start position. Lines are never
// mutated; a changed game produces a new Line.
type Line struct {
	Positions []Position
}

// FromGame snapshots every position g has been through.
func FromGame(g *chess.Game) (Line, error) {
	positions := g.Positions()
	moves := g.Moves()
	if len(positions) == 0 {
		return Line{}, ErrEmptyGame
	}

	line := Line{Positions: make([]Position, 0, len(positions))}
	for i, pos := range positions {
		p := snapshot(i, pos)
		if i > 0 && i-1 < len(moves) {
			prev := positions[i-1]
			p.Move = chess.UCINotation{}.Encode(prev, moves[i-1])
			p.SAN = chess.AlgebraicNotation{}.Encode(prev, moves[i-1])
		}
		line.Positions = append(line.Positions, p)
	}
	return line, nil
}

// FromPGN parses a PGN game. Bare movetext such as "e4 e5 Nf3" is
// accepted too.
func FromPGN(pgn string) (Line, error) {
	pgn = strings.TrimSpace(pgn)
	if pgn == "" {
		return Line{}, ErrEmptyGame
	}
	opt, err := chess.PGN(strings.NewReader(pgn))
	if err == nil {
		return FromGame(chess.NewGame(opt))
	}

	g := chess.NewGame()
	for _, token := range strings.Fields(pgn) {
		if isResult(token) {
			continue
		}
		token = strings.TrimLeft(token, "0123456789.")
		if token == "" {
			continue
		}
		if moveErr := g.MoveStr(token); moveErr != nil {
			return Line{}, fmt.Errorf("invalid PGN: %w", moveErr)
		}
	}
	return FromGame(g)
}

// FromFEN is a single-position line.
func FromFEN(fen string) (Line, error) {
	opt, err := chess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return Line{}, fmt.Errorf("invalid fen: %w", err)
	}
	return FromGame(chess.NewGame(opt))
}

// FromMoves plays UCI moves from startFEN, or from the standard start when
// startFEN is empty.
func FromMoves(startFEN string, moves []string) (Line, error) {
	var g *chess.Game
	if strings.TrimSpace(startFEN) == "" {
		g = chess.NewGame(chess.UseNotation(chess.UCINotation{}))
	} else {
		opt, err := chess.FEN(strings.TrimSpace(startFEN))
		if err != nil {
			return Line{}, fmt.Errorf("invalid fen: %w", err)
		}
		g = chess.NewGame(opt, chess.UseNotation(chess.UCINotation{}))
	}
	for i, move := range moves {
		if err := g.MoveStr(move); err != nil {
			return Line{}, fmt.Errorf("move %d %q: %w", i+1, move, err)
		}
	}
	return FromGame(g)
}

// Parse builds a line from whichever description is set: a PGN game, or a
// FEN with optional UCI moves played from it, or UCI moves from the
// standard start.
func Parse(pgn, fen string, moves []string) (Line, error) {
	switch {
	case strings.TrimSpace(pgn) != "":
		return FromPGN(pgn)
	case len(moves) > 0:
		return FromMoves(fen, moves)
	case strings.TrimSpace(fen) != "":
		return FromFEN(fen)
	default:
		return Line{}, ErrEmptyGame
	}
}

// Len is the number of positions.
func (l Line) Len() int {
	return len(l.Positions)
}

// Moves lists the UCI moves of the line in order.
func (l Line) Moves() []string {
	if len(l.Positions) < 2 {
		return nil
	}
	moves := make([]string, 0, len(l.Positions)-1)
	for _, p := range l.Positions[1:] {
		moves = append(moves, p.Move)
	}
	return moves
}

// CommonPrefix is the number of leading positions a and b share. Positions
// match when they have the same key and were reached by the same move.
func CommonPrefix(a, b Line) int {
	n := min(len(a.Positions), len(b.Positions))
	for i := 0; i < n; i++ {
		pa, pb := a.Positions[i], b.Positions[i]
		if pa.Key != pb.Key || pa.Move != pb.Move {
			return i
		}
	}
	return n
}

// IsPrefixOf reports whether l is the start of other.
func (l Line) IsPrefixOf(other Line) bool {
	return CommonPrefix(l, other) == len(l.Positions)
}

func snapshot(i int, pos *chess.Position) Position {
	fen := pos.String()
	legal := len(pos.ValidMoves())
	status := pos.Status()
	return Position{
		Index:      i,
		FEN:        fen,
		Key:        Key(fen),
		Turn:       pos.Turn(),
		LegalMoves: legal,
		Checkmate:  status == chess.Checkmate,
		Stalemate:  status == chess.Stalemate,
	}
}

// Key keeps the FEN fields that identify a position: placement, side to
// move, castling rights and en passant square.
func Key(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}

func isResult(token string) bool {
	switch token {
	case "1-0", "0-1", "1/2-1/2", "*":
		return true
	}
	return false
}
