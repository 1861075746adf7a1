package models

import (
	"time"

	"github.com/notnil/chess"
)

// Constraints bound a single search. Zero values mean "not set".
type Constraints struct {
	Depth    int           `json:"depth,omitempty"`
	MoveTime time.Duration `json:"move_time,omitempty"`
	MultiPV  int           `json:"multipv,omitempty"`
}

// PVLine is one principal variation reported under MultiPV.
type PVLine struct {
	MultiPV int      `json:"multipv"`
	Depth   int      `json:"depth"`
	Score   Score    `json:"score"`
	PV      []string `json:"pv"`
}

// Evaluation is the engine's verdict on one position. Scores are from the
// point of view of Turn, the side to move in that position.
type Evaluation struct {
	RequestID uint64      `json:"request_id"`
	FEN       string      `json:"fen"`
	Turn      chess.Color `json:"turn"`
	Score     Score       `json:"score"`
	BestMove  string      `json:"best_move,omitempty"`
	Ponder    string      `json:"ponder,omitempty"`
	PV        []string    `json:"pv,omitempty"`
	Depth     int         `json:"depth"`
	Nodes     int64       `json:"nodes,omitempty"`
	NodesPerS int64       `json:"nodes_per_s,omitempty"`
	Lines     []PVLine    `json:"lines,omitempty"`
	Final     bool        `json:"final"`
}

// WhiteScore returns Score from White's point of view. Mate 0 (side to move
// is checkmated) comes back unchanged; check Turn to know who was mated.
func (e Evaluation) WhiteScore() Score {
	if e.Turn == chess.Black {
		return e.Score.Negate()
	}
	return e.Score
}
