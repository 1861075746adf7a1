package analysis

import (
	"github.com/notnil/chess"

	"github.com/jacokyle01/game-review/src/models"
)

var accuracyWeights = map[models.Classification]float64{
	models.Book:       100,
	models.Forced:     100,
	models.Best:       100,
	models.Excellent:  90,
	models.Good:       75,
	models.Inaccuracy: 50,
	models.Mistake:    25,
	models.Blunder:    0,
}

// Accuracy scores each side from 0 to 100 as the mean weight of its
// classified moves. A side with no classified move is absent.
func Accuracy(results []PositionResult) map[chess.Color]float64 {
	sum := map[chess.Color]float64{}
	count := map[chess.Color]int{}
	for i := 1; i < len(results); i++ {
		weight, ok := accuracyWeights[results[i].Classification]
		if !ok {
			continue
		}
		mover := results[i-1].Turn
		sum[mover] += weight
		count[mover]++
	}

	out := make(map[chess.Color]float64, len(count))
	for color, n := range count {
		out[color] = sum[color] / float64(n)
	}
	return out
}
