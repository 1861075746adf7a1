// Package analysis turns engine evaluations of a game's positions into
// move classifications.
package analysis

import (
	"context"
	"errors"

	"github.com/notnil/chess"
	"github.com/rs/zerolog"

	"github.com/jacokyle01/game-review/src/engine"
	"github.com/jacokyle01/game-review/src/game"
	"github.com/jacokyle01/game-review/src/models"
)

// Engine is the part of an engine session the pipeline drives.
// *engine.Session implements it.
type Engine interface {
	SetPosition(pos engine.Position) error
	StartAnalysis(ctx context.Context, c models.Constraints) (*engine.Search, error)
	Stop()
}

type Config struct {
	Constraints models.Constraints
	// Thresholds default to DefaultThresholds.
	Thresholds *Thresholds
	// Cache is optional; without one every position is searched.
	Cache *Cache
	// Book is optional; without one no move is labelled Book.
	Book   *Book
	Logger zerolog.Logger
}

// PositionResult is the outcome for one position of a line. Classification
// labels the move that led to the position.
type PositionResult struct {
	game.Position
	Evaluation     *models.Evaluation    `json:"evaluation,omitempty"`
	Classification models.Classification `json:"classification"`
	Err            error                 `json:"-"`
}

// Event reports one completed position.
type Event struct {
	PositionResult
	Total  int  `json:"total"`
	Cached bool `json:"cached"`
}

type Report struct {
	Positions []PositionResult        `json:"positions"`
	Opening   string                  `json:"opening,omitempty"`
	Accuracy  map[chess.Color]float64 `json:"-"`
}

// Pipeline walks lines of positions through one engine session. It is not
// safe for concurrent use; the session underneath runs one search at a
// time.
type Pipeline struct {
	engine      Engine
	constraints models.Constraints
	thresholds  Thresholds
	cache       *Cache
	book        *Book
	log         zerolog.Logger
}

func New(e Engine, cfg Config) *Pipeline {
	thresholds := DefaultThresholds
	if cfg.Thresholds != nil {
		thresholds = *cfg.Thresholds
	}
	return &Pipeline{
		engine:      e,
		constraints: cfg.Constraints,
		thresholds:  thresholds,
		cache:       cfg.Cache,
		book:        cfg.Book,
		log:         cfg.Logger,
	}
}

// AnalyzeLine evaluates every position of line in order and classifies
// every move. A position whose search times out is left unclassified and
// the walk goes on; a session that can no longer search, or ctx, ends it
// early with the results so far.
func (p *Pipeline) AnalyzeLine(ctx context.Context, line game.Line, onEvent func(Event)) (Report, error) {
	bookDepth := p.book.Depth(line)
	results := make([]PositionResult, 0, line.Len())

	for _, pos := range line.Positions {
		ev, cached, err := p.evaluate(ctx, pos)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.report(line, results), ctxErr
		}
		if sessionFailed(err) {
			return p.report(line, results), err
		}
		results = p.record(line, results, ev, err, bookDepth, cached, onEvent)
	}
	return p.report(line, results), nil
}

// Follow analyses a line that keeps changing, such as a game being played
// or browsed. Each value received on lines replaces the previous one: work
// on the shared prefix is kept, a search for a position no longer on the
// path is stopped, and analysis resumes at the first diverging position.
// Follow returns after lines is closed and the last line is done, or as
// soon as the session can no longer search.
func (p *Pipeline) Follow(ctx context.Context, lines <-chan game.Line, onEvent func(Event)) error {
	var (
		line      game.Line
		bookDepth int
		results   []PositionResult
		search    *engine.Search
		final     *models.Evaluation
	)
	defer func() {
		if search != nil {
			p.engine.Stop()
		}
	}()

	for {
		for search == nil && len(results) < line.Len() {
			pos := line.Positions[len(results)]
			if ev, ok := p.lookup(pos); ok {
				results = p.record(line, results, ev, nil, bookDepth, true, onEvent)
				continue
			}
			s, err := p.start(ctx, pos)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if sessionFailed(err) {
					return err
				}
				results = p.record(line, results, nil, err, bookDepth, false, onEvent)
				continue
			}
			search, final = s, nil
		}
		if search == nil && lines == nil {
			return nil
		}

		var events <-chan models.Evaluation
		if search != nil {
			events = search.Events()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case next, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			keep := game.CommonPrefix(line, next)
			if search != nil && len(results) >= keep {
				p.log.Debug().Int("index", len(results)).Int("diverged", keep).Msg("line changed, stopping stale search")
				p.engine.Stop()
				search = nil
			}
			if len(results) > keep {
				results = results[:keep]
			}
			line = next
			bookDepth = p.book.Depth(next)

		case ev, ok := <-events:
			if ok {
				if ev.Final {
					final = &ev
				}
				continue
			}
			s := search
			search = nil
			pos := line.Positions[len(results)]
			if final == nil {
				if err := s.Err(); sessionFailed(err) {
					return err
				}
				results = p.record(line, results, nil, s.Err(), bookDepth, false, onEvent)
				continue
			}
			p.cache.Add(pos.Key, *final)
			results = p.record(line, results, final, nil, bookDepth, false, onEvent)
		}
	}
}

// sessionFailed tells errors that leave the session unable to search from
// ones that only cost a single position.
func sessionFailed(err error) bool {
	return errors.Is(err, engine.ErrInvalidState) || errors.Is(err, engine.ErrEngineUnavailable)
}

// lookup resolves a position without the engine when it can.
func (p *Pipeline) lookup(pos game.Position) (*models.Evaluation, bool) {
	if pos.Terminal() {
		ev := terminal(pos)
		return &ev, true
	}
	ev, ok := p.cache.Get(pos.Key)
	if !ok {
		return nil, false
	}
	ev.FEN = pos.FEN
	ev.RequestID = 0
	return &ev, true
}

func (p *Pipeline) start(ctx context.Context, pos game.Position) (*engine.Search, error) {
	if err := p.engine.SetPosition(engine.Position{FEN: pos.FEN}); err != nil {
		return nil, err
	}
	return p.engine.StartAnalysis(ctx, p.constraints)
}

func (p *Pipeline) evaluate(ctx context.Context, pos game.Position) (*models.Evaluation, bool, error) {
	if ev, ok := p.lookup(pos); ok {
		return ev, true, nil
	}
	search, err := p.start(ctx, pos)
	if err != nil {
		return nil, false, err
	}
	ev, err := search.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			p.engine.Stop()
		}
		return nil, false, err
	}
	p.cache.Add(pos.Key, ev)
	return &ev, false, nil
}

// record appends the result for the next position of line and reports it.
func (p *Pipeline) record(line game.Line, results []PositionResult, ev *models.Evaluation, err error, bookDepth int, cached bool, onEvent func(Event)) []PositionResult {
	pos := line.Positions[len(results)]
	r := PositionResult{Position: pos, Evaluation: ev, Err: err}
	if err != nil {
		p.log.Warn().Err(err).Int("index", pos.Index).Str("fen", pos.FEN).Msg("position analysis failed")
	}
	if pos.Index > 0 {
		r.Classification = p.classify(results[pos.Index-1], r, bookDepth)
	}
	results = append(results, r)

	if onEvent != nil {
		onEvent(Event{PositionResult: r, Total: line.Len(), Cached: cached})
	}
	return results
}

func (p *Pipeline) classify(prev, cur PositionResult, bookDepth int) models.Classification {
	switch {
	case prev.LegalMoves == 1:
		return models.Forced
	case cur.Index <= bookDepth:
		return models.Book
	default:
		return p.thresholds.Classify(prev.Evaluation, cur.Evaluation, prev.Turn)
	}
}

func (p *Pipeline) report(line game.Line, results []PositionResult) Report {
	return Report{
		Positions: results,
		Opening:   p.book.Opening(line),
		Accuracy:  Accuracy(results),
	}
}

// terminal is the evaluation of a finished game: the side to move is mated
// or the game is drawn.
func terminal(pos game.Position) models.Evaluation {
	ev := models.Evaluation{FEN: pos.FEN, Turn: pos.Turn, Final: true}
	if pos.Checkmate {
		ev.Score = models.MateIn(0)
	} else {
		ev.Score = models.CP(0)
	}
	return ev
}
