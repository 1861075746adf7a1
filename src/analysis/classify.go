package analysis

import (
	"github.com/notnil/chess"

	"github.com/jacokyle01/game-review/src/models"
)

const (
	// centipawn scores are clamped into (-mateRank, mateRank)
	cpLimit  = 10000
	mateRank = 100000
)

// Thresholds are the inclusive upper bounds, in centipawns lost by the
// mover, of each label. A loss above Mistake is a blunder.
type Thresholds struct {
	Best       int `yaml:"best" json:"best"`
	Excellent  int `yaml:"excellent" json:"excellent"`
	Good       int `yaml:"good" json:"good"`
	Inaccuracy int `yaml:"inaccuracy" json:"inaccuracy"`
	Mistake    int `yaml:"mistake" json:"mistake"`
}

var DefaultThresholds = Thresholds{
	Best:       10,
	Excellent:  25,
	Good:       50,
	Inaccuracy: 100,
	Mistake:    250,
}

// Classify labels the move played by mover between the positions evaluated
// by before and after. Missing evaluations yield Unclassified.
func Classify(before, after *models.Evaluation, mover chess.Color) models.Classification {
	return DefaultThresholds.Classify(before, after, mover)
}

func (t Thresholds) Classify(before, after *models.Evaluation, mover chess.Color) models.Classification {
	if before == nil || after == nil {
		return models.Unclassified
	}
	return t.label(Loss(before, after, mover))
}

// Loss is how much the mover's standing dropped over the move, on the
// ranked scale. Improvements count as zero loss.
func Loss(before, after *models.Evaluation, mover chess.Color) int {
	loss := rankFor(before, mover) - rankFor(after, mover)
	if loss < 0 {
		return 0
	}
	return loss
}

func (t Thresholds) label(loss int) models.Classification {
	switch {
	case loss <= t.Best:
		return models.Best
	case loss <= t.Excellent:
		return models.Excellent
	case loss <= t.Good:
		return models.Good
	case loss <= t.Inaccuracy:
		return models.Inaccuracy
	case loss <= t.Mistake:
		return models.Mistake
	default:
		return models.Blunder
	}
}

// rankFor places ev on the ranked scale from color's point of view.
func rankFor(ev *models.Evaluation, color chess.Color) int {
	r := Rank(ev.Score)
	if ev.Turn != color {
		return -r
	}
	return r
}

// Rank maps a score from the side to move onto one ordered scale. Every
// mate for the side to move ranks above every centipawn score, shorter
// mates above longer ones; being mated mirrors that below. Mate 0 means
// the side to move is checkmated.
func Rank(s models.Score) int {
	if !s.IsMate() {
		return max(-cpLimit, min(s.Value, cpLimit))
	}
	switch {
	case s.Value > 0:
		return mateRank - s.Value
	case s.Value < 0:
		return -(mateRank + s.Value)
	default:
		return -mateRank
	}
}
