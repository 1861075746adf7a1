package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/notnil/chess"

	"github.com/jacokyle01/game-review/src/models"
)

// Search is one analysis request in flight. Its events are partial
// evaluations followed by exactly one final evaluation, after which the
// channel is closed. A search ended early closes its channel without a
// final evaluation and reports why through Err.
type Search struct {
	id      uint64
	fen     string
	turn    chess.Color
	multiPV int

	events chan models.Evaluation
	done   chan struct{}

	errMu sync.Mutex
	err   error

	mu       sync.Mutex
	finished bool
	byPV     map[int]models.PVLine
	latest   models.Evaluation
	timer    *time.Timer

	endOnce  sync.Once
	halt     func()
	onEnd    func(s *Search, err error)
	onDesync func(line string)
}

func newSearch(id uint64, fen string, multiPV int) *Search {
	return &Search{
		id:      id,
		fen:     fen,
		turn:    turnOf(fen),
		multiPV: multiPV,
		events:  make(chan models.Evaluation),
		done:    make(chan struct{}),
		byPV:    make(map[int]models.PVLine, multiPV),
		latest:  models.Evaluation{RequestID: id, FEN: fen, Turn: turnOf(fen)},
	}
}

// ID is the request identity every delivered evaluation carries.
func (s *Search) ID() uint64 {
	return s.id
}

// Events streams the evaluations of this request.
func (s *Search) Events() <-chan models.Evaluation {
	return s.events
}

// Done is closed once the search has ended for any reason.
func (s *Search) Done() <-chan struct{} {
	return s.done
}

// Err reports why the search ended: nil after a final evaluation,
// ErrSearchCanceled, ErrAnalysisTimeout or ErrEngineUnavailable otherwise.
// It returns nil while the search is still running.
func (s *Search) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Wait drains the event stream and returns the final evaluation. It
// returns once the session has taken the search off its books, so the
// session is ready for the next request.
func (s *Search) Wait(ctx context.Context) (models.Evaluation, error) {
	var final *models.Evaluation
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				if final != nil {
					return *final, nil
				}
				if err := s.Err(); err != nil {
					return models.Evaluation{}, err
				}
				return models.Evaluation{}, ErrSearchCanceled
			}
			if ev.Final {
				final = &ev
			}
		case <-ctx.Done():
			return models.Evaluation{}, ctx.Err()
		}
	}
}

func (s *Search) accept(line string) bool {
	if update, ok := parseInfoLine(line); ok {
		if s.canceled() {
			return false
		}
		if ev, changed := s.merge(update); changed {
			s.deliver(ev)
		}
		return false
	}

	if !strings.HasPrefix(line, "bestmove") {
		return false
	}
	bestMove, ponder, ok := parseBestMoveLine(line)
	if !ok {
		if s.onDesync != nil {
			s.onDesync(line)
		}
		return false
	}
	if s.canceled() {
		// late answer to a stopped search; the worker is free again
		return true
	}

	s.mu.Lock()
	final := s.latest
	s.mu.Unlock()
	final.BestMove = bestMove
	final.Ponder = ponder
	final.Final = true
	if s.deliver(final) {
		s.end(nil)
	}
	return true
}

func (s *Search) abort(err error) {
	s.end(err)
}

// merge folds an info line into the running evaluation. Lines without a
// score (currmove, string, hashfull) do not produce an event.
func (s *Search) merge(update infoUpdate) (models.Evaluation, bool) {
	if update.Score == nil || update.Bound {
		return models.Evaluation{}, false
	}
	lineID := 1
	if update.MultiPV != nil && *update.MultiPV > 0 {
		lineID = *update.MultiPV
	}
	if lineID > s.multiPV {
		return models.Evaluation{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.byPV[lineID]
	current.MultiPV = lineID
	current.Score = *update.Score
	if update.Depth != nil {
		current.Depth = *update.Depth
	}
	if len(update.PV) > 0 {
		current.PV = append([]string(nil), update.PV...)
	}
	s.byPV[lineID] = current

	if update.Nodes != nil {
		s.latest.Nodes = *update.Nodes
	}
	if update.NodesPerS != nil {
		s.latest.NodesPerS = *update.NodesPerS
	}
	s.latest.Lines = sortedLines(s.byPV)
	primary, ok := s.byPV[1]
	if !ok {
		primary = s.latest.Lines[0]
	}
	s.latest.Score = primary.Score
	s.latest.Depth = primary.Depth
	s.latest.PV = append([]string(nil), primary.PV...)
	return s.latest, true
}

// deliver hands ev to the consumer unless the search has ended. The send
// happens under s.mu so end can act as a barrier: once end returns, nothing
// else is ever delivered.
func (s *Search) deliver(ev models.Evaluation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Search) canceled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// end terminates the search with err and reports whether this call did it.
// The owner is notified before the event channel closes: a consumer that
// sees the close finds the session idle.
func (s *Search) end(err error) bool {
	ended := false
	s.endOnce.Do(func() {
		ended = true
		s.errMu.Lock()
		s.err = err
		s.errMu.Unlock()
		close(s.done)

		if s.onEnd != nil {
			s.onEnd(s, err)
		}

		s.mu.Lock()
		s.finished = true
		if s.timer != nil {
			s.timer.Stop()
		}
		close(s.events)
		s.mu.Unlock()
	})
	return ended
}

func turnOf(fen string) chess.Color {
	fields := strings.Fields(fen)
	if len(fields) > 1 && fields[1] == "b" {
		return chess.Black
	}
	return chess.White
}
