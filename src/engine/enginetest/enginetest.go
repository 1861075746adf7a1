// Package enginetest provides an in-process UCI engine for tests. It speaks
// the same protocol a real engine binary does, over pipes, and answers
// deterministically.
package enginetest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/notnil/chess"

	"github.com/jacokyle01/game-review/src/engine"
	"github.com/jacokyle01/game-review/src/models"
)

// Config scripts the behavior of every engine a Farm launches.
type Config struct {
	// Score evaluates a FEN from the side to move. Defaults to HashScore.
	Score func(fen string) models.Score
	// Delay holds the bestmove back; a stop cuts it short.
	Delay time.Duration
	// Hang never finishes a search on its own; only stop ends it.
	Hang bool
	// IgnoreStop makes stop have no effect.
	IgnoreStop bool
	// FailHandshake makes the engine exit on "uci".
	FailHandshake bool
	// FailLaunches makes the first n launches fail outright.
	FailLaunches int
}

// Farm launches scripted engines and keeps count of them.
type Farm struct {
	cfg Config

	mu       sync.Mutex
	launched int
	live     map[*instance]struct{}
	binaries []string
	commands []string
	searches int
}

func NewFarm(cfg Config) *Farm {
	if cfg.Score == nil {
		cfg.Score = HashScore
	}
	return &Farm{cfg: cfg, live: make(map[*instance]struct{})}
}

// Launch satisfies engine.Launcher.
func (f *Farm) Launch(_ context.Context, binary string) (engine.Transport, error) {
	f.mu.Lock()
	f.launched++
	if f.launched <= f.cfg.FailLaunches {
		f.mu.Unlock()
		return nil, fmt.Errorf("launch %s: %w", binary, errors.New("exec format error"))
	}
	f.binaries = append(f.binaries, binary)
	f.mu.Unlock()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	inst := &instance{
		farm:   f,
		in:     inR,
		out:    outW,
		exited: make(chan struct{}),
	}
	f.mu.Lock()
	f.live[inst] = struct{}{}
	f.mu.Unlock()
	go inst.run()

	release := func(ctx context.Context) error {
		_ = outR.Close()
		select {
		case <-inst.exited:
		case <-ctx.Done():
			_ = inR.CloseWithError(io.ErrClosedPipe)
			<-inst.exited
		}
		return nil
	}
	return engine.NewStreamTransport(inW, outR, release), nil
}

// Live is the number of engines that have not exited.
func (f *Farm) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// Launched counts every launch attempt, failed ones included.
func (f *Farm) Launched() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.launched
}

// Binaries lists the binaries successfully launched, in order.
func (f *Farm) Binaries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.binaries...)
}

// Commands lists every command line any engine received.
func (f *Farm) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// Searches counts "go" commands received.
func (f *Farm) Searches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches
}

// Emit writes an unsolicited line from every live engine.
func (f *Farm) Emit(line string) {
	f.mu.Lock()
	instances := make([]*instance, 0, len(f.live))
	for inst := range f.live {
		instances = append(instances, inst)
	}
	f.mu.Unlock()
	for _, inst := range instances {
		inst.write(line)
	}
}

// Crash makes every live engine exit as if its process died.
func (f *Farm) Crash() {
	f.mu.Lock()
	instances := make([]*instance, 0, len(f.live))
	for inst := range f.live {
		instances = append(instances, inst)
	}
	f.mu.Unlock()
	for _, inst := range instances {
		_ = inst.in.CloseWithError(io.ErrUnexpectedEOF)
	}
}

func (f *Farm) record(cmd string) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	if strings.HasPrefix(cmd, "go") {
		f.searches++
	}
	f.mu.Unlock()
}

type instance struct {
	farm *Farm
	in   *io.PipeReader
	out  *io.PipeWriter

	writeMu sync.Mutex
	mu      sync.Mutex
	fen     string
	stop    chan struct{}

	exited chan struct{}
}

func (i *instance) run() {
	defer func() {
		i.halt()
		_ = i.in.Close()
		_ = i.out.Close()
		i.farm.mu.Lock()
		delete(i.farm.live, i)
		i.farm.mu.Unlock()
		close(i.exited)
	}()

	scanner := bufio.NewScanner(i.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		i.farm.record(line)
		fields := strings.Fields(line)

		switch fields[0] {
		case "uci":
			if i.farm.cfg.FailHandshake {
				return
			}
			i.write("id name Scripted 1.0")
			i.write("id author enginetest")
			i.write("option name Threads type spin default 1 min 1 max 1024")
			i.write("option name Hash type spin default 16 min 1 max 33554432")
			i.write("option name MultiPV type spin default 1 min 1 max 500")
			i.write("uciok")
		case "isready":
			i.write("readyok")
		case "position":
			i.position(fields[1:])
		case "go":
			i.search(fields[1:])
		case "stop":
			if !i.farm.cfg.IgnoreStop {
				i.halt()
			}
		case "quit":
			return
		}
	}
}

func (i *instance) position(args []string) {
	fen := chess.StartingPosition().String()
	if len(args) > 1 && args[0] == "fen" {
		end := len(args)
		for j, arg := range args {
			if arg == "moves" {
				end = j
				break
			}
		}
		fen = strings.Join(args[1:end], " ")
	}
	i.mu.Lock()
	i.fen = fen
	i.mu.Unlock()
}

func (i *instance) search(args []string) {
	depth := 10
	for j := 0; j+1 < len(args); j++ {
		if args[j] == "depth" {
			if d, err := strconv.Atoi(args[j+1]); err == nil {
				depth = d
			}
		}
	}

	i.mu.Lock()
	fen := i.fen
	stop := make(chan struct{})
	i.stop = stop
	i.mu.Unlock()

	cfg := i.farm.cfg
	score := cfg.Score(fen)
	best := FirstMove(fen)
	go func() {
		i.write(fmt.Sprintf("info depth 1 seldepth 1 multipv 1 score %s nodes 20 nps 2000 pv %s", scoreToken(score), best))
		i.write("info string scripted search")
		i.write(fmt.Sprintf("info depth %d seldepth %d multipv 1 score %s nodes 4000 nps 400000 pv %s", depth, depth, scoreToken(score), best))

		switch {
		case cfg.Hang:
			<-stop
		case cfg.Delay > 0:
			select {
			case <-time.After(cfg.Delay):
			case <-stop:
			}
		}
		i.write("bestmove " + best)
	}()
}

func (i *instance) halt() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stop != nil {
		close(i.stop)
		i.stop = nil
	}
}

func (i *instance) write(line string) {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()
	_, _ = io.WriteString(i.out, line+"\n")
}

func scoreToken(s models.Score) string {
	if s.IsMate() {
		return "mate " + strconv.Itoa(s.Value)
	}
	return "cp " + strconv.Itoa(s.Value)
}

// HashScore derives a stable centipawn score in [-100, 100] from the
// position part of a FEN.
func HashScore(fen string) models.Score {
	h := fnv.New32a()
	_, _ = h.Write([]byte(PositionKey(fen)))
	return models.CP(int(h.Sum32()%201) - 100)
}

// ScoreTable scores positions found in table (keyed by PositionKey) and
// falls back to HashScore for the rest.
func ScoreTable(table map[string]models.Score) func(string) models.Score {
	return func(fen string) models.Score {
		if score, ok := table[PositionKey(fen)]; ok {
			return score
		}
		return HashScore(fen)
	}
}

// PositionKey keeps the four FEN fields that identify a position.
func PositionKey(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}

// FirstMove returns the alphabetically first legal move in UCI notation,
// or "(none)" when there is none.
func FirstMove(fen string) string {
	opt, err := chess.FEN(fen)
	if err != nil {
		return "(none)"
	}
	game := chess.NewGame(opt)
	var moves []string
	for _, move := range game.ValidMoves() {
		moves = append(moves, chess.UCINotation{}.Encode(game.Position(), move))
	}
	if len(moves) == 0 {
		return "(none)"
	}
	sort.Strings(moves)
	return moves[0]
}
