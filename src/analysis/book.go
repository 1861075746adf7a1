package analysis

import (
	"strings"

	"github.com/notnil/chess"
	"github.com/notnil/chess/opening"

	"github.com/jacokyle01/game-review/src/game"
)

// Book recognises opening theory from the ECO tables.
type Book struct {
	eco *opening.BookECO
}

func NewBook() *Book {
	return &Book{eco: opening.NewBookECO()}
}

// Depth is the number of leading moves of line that are still inside some
// catalogued opening. Lines that do not start from the initial position
// have no book moves.
func (b *Book) Depth(line game.Line) int {
	moves := b.moves(line)
	if len(moves) == 0 {
		return 0
	}
	played := line.Moves()[:len(moves)]

	depth := 0
	for depth < len(played) && b.inBook(moves[:depth+1], played[:depth+1]) {
		depth++
	}
	return depth
}

// inBook reports whether some catalogued opening starts with the UCI moves
// played.
func (b *Book) inBook(moves []*chess.Move, played []string) bool {
	for _, o := range b.eco.Possible(moves) {
		tokens := movetext(o.PGN())
		if len(tokens) < len(played) {
			continue
		}
		match := true
		for i, move := range played {
			if tokens[i] != move {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Opening names the deepest catalogued opening line follows, e.g.
// "C50 Italian Game".
func (b *Book) Opening(line game.Line) string {
	moves := b.moves(line)
	if len(moves) == 0 {
		return ""
	}
	o := b.eco.Find(moves)
	if o == nil {
		return ""
	}
	return o.Code() + " " + o.Title()
}

func (b *Book) moves(line game.Line) []*chess.Move {
	if b == nil || line.Len() < 2 || line.Positions[0].Key != game.Key(chess.StartingPosition().String()) {
		return nil
	}
	g := chess.NewGame()
	for _, uci := range line.Moves() {
		move, err := chess.UCINotation{}.Decode(g.Position(), uci)
		if err != nil {
			break
		}
		if err := g.Move(move); err != nil {
			break
		}
	}
	return g.Moves()
}

// movetext splits an opening's move list into UCI moves, dropping any move
// numbers.
func movetext(pgn string) []string {
	var out []string
	for _, token := range strings.Fields(pgn) {
		token = strings.TrimLeft(token, "0123456789.")
		if token == "" || token == "*" {
			continue
		}
		out = append(out, token)
	}
	return out
}
