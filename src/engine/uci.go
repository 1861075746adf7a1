package engine

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jacokyle01/game-review/src/models"
)

// defaultDepth bounds a search whose constraints set neither depth nor time.
const defaultDepth = 16

type infoUpdate struct {
	MultiPV   *int
	Depth     *int
	Nodes     *int64
	NodesPerS *int64
	Score     *models.Score
	Bound     bool // lowerbound/upperbound scores are not final for the depth
	PV        []string
}

func parseBestMoveLine(line string) (bestMove string, ponder string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "bestmove" {
		return "", "", false
	}
	bestMove = fields[1]
	if bestMove == "(none)" {
		bestMove = ""
	}
	for i := 2; i+1 < len(fields); i++ {
		if fields[i] == "ponder" {
			ponder = fields[i+1]
			break
		}
	}
	return bestMove, ponder, true
}

func parseInfoLine(line string) (infoUpdate, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "info" {
		return infoUpdate{}, false
	}

	update := infoUpdate{}
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "string":
			// free text until end of line
			return update, true
		case "multipv":
			if i+1 < len(fields) {
				if v, err := strconv.Atoi(fields[i+1]); err == nil {
					update.MultiPV = &v
				}
				i++
			}
		case "depth":
			if i+1 < len(fields) {
				if v, err := strconv.Atoi(fields[i+1]); err == nil {
					update.Depth = &v
				}
				i++
			}
		case "nodes":
			if i+1 < len(fields) {
				if v, err := strconv.ParseInt(fields[i+1], 10, 64); err == nil {
					update.Nodes = &v
				}
				i++
			}
		case "nps":
			if i+1 < len(fields) {
				if v, err := strconv.ParseInt(fields[i+1], 10, 64); err == nil {
					update.NodesPerS = &v
				}
				i++
			}
		case "score":
			if i+2 < len(fields) {
				if v, err := strconv.Atoi(fields[i+2]); err == nil {
					switch fields[i+1] {
					case "cp":
						score := models.CP(v)
						update.Score = &score
					case "mate":
						score := models.MateIn(v)
						update.Score = &score
					}
				}
				i += 2
			}
		case "lowerbound", "upperbound":
			update.Bound = true
		case "pv":
			if i+1 < len(fields) {
				update.PV = append([]string(nil), fields[i+1:]...)
			}
			return update, true
		}
	}
	return update, true
}

// goCommand renders search constraints as a UCI go command.
func goCommand(c models.Constraints) string {
	var b strings.Builder
	b.WriteString("go")
	if c.Depth > 0 {
		b.WriteString(" depth ")
		b.WriteString(strconv.Itoa(c.Depth))
	}
	if c.MoveTime > 0 {
		millis := c.MoveTime.Milliseconds()
		if millis < 1 {
			millis = 1
		}
		b.WriteString(" movetime ")
		b.WriteString(strconv.FormatInt(millis, 10))
	}
	if c.Depth <= 0 && c.MoveTime <= 0 {
		b.WriteString(" depth ")
		b.WriteString(strconv.Itoa(defaultDepth))
	}
	return b.String()
}

// searchBound is the hard deadline for a search: generous relative to the
// requested move time, never below the configured floor.
func searchBound(c models.Constraints, floor time.Duration) time.Duration {
	if c.MoveTime > 0 {
		if bound := 3*c.MoveTime + 5*time.Second; bound > floor {
			return bound
		}
	}
	return floor
}

func sortedLines(byPV map[int]models.PVLine) []models.PVLine {
	lines := make([]models.PVLine, 0, len(byPV))
	for _, line := range byPV {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].MultiPV < lines[j].MultiPV
	})
	return lines
}
