package models

import (
	"fmt"
	"strconv"
)

// ScoreKind tells how Score.Value is encoded.
type ScoreKind int

const (
	Centipawns ScoreKind = iota
	Mate
)

func (k ScoreKind) String() string {
	if k == Mate {
		return "mate"
	}
	return "cp"
}

func (k ScoreKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ScoreKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "cp", "":
		*k = Centipawns
	case "mate":
		*k = Mate
	default:
		return fmt.Errorf("unknown score kind %q", text)
	}
	return nil
}

// Score is an engine score from the point of view of the side to move,
// exactly as UCI reports it. For Mate scores Value is the number of moves
// until mate: positive when the side to move mates, negative when it gets
// mated, and 0 when the side to move is already checkmated.
type Score struct {
	Kind  ScoreKind `json:"kind"`
	Value int       `json:"value"`
}

func CP(value int) Score {
	return Score{Kind: Centipawns, Value: value}
}

func MateIn(moves int) Score {
	return Score{Kind: Mate, Value: moves}
}

func (s Score) IsMate() bool {
	return s.Kind == Mate
}

// Negate returns the same score seen from the other side.
// A checkmated side to move (mate 0) has no signed negation, so it is kept.
func (s Score) Negate() Score {
	return Score{Kind: s.Kind, Value: -s.Value}
}

func (s Score) String() string {
	if s.Kind == Mate {
		return "#" + strconv.Itoa(s.Value)
	}
	return fmt.Sprintf("%+.2f", float64(s.Value)/100)
}
