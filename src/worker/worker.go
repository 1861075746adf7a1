package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jacokyle01/game-review/src/analysis"
	"github.com/jacokyle01/game-review/src/engine"
	"github.com/jacokyle01/game-review/src/game"
	"github.com/jacokyle01/game-review/src/models"
)

// JobSource hands out game analysis jobs.
type JobSource interface {
	// NextJob waits for a job; ok is false when none arrived in time.
	NextJob(ctx context.Context) (job models.Job, ok bool, err error)
}

// ResultSink receives results as positions are analysed.
type ResultSink interface {
	SubmitResult(ctx context.Context, result models.Result) error
	CompleteJob(ctx context.Context, c models.Completion) error
}

type Config struct {
	Source JobSource
	Sink   ResultSink
	Slot   *engine.Slot
	// Engine is used for jobs that do not name one.
	Engine      engine.Name
	Workers     int
	Constraints models.Constraints
	Thresholds  *analysis.Thresholds
	CacheSize   int
	Book        *analysis.Book
	// Backoff is the pause after a failed poll.
	Backoff time.Duration
	Logger  zerolog.Logger
}

// Worker pulls jobs and runs each through the analysis pipeline on the
// session held in its slot.
type Worker struct {
	cfg    Config
	log    zerolog.Logger
	caches map[cacheKey]*analysis.Cache
}

// evaluations are only interchangeable between identical engines and
// search limits
type cacheKey struct {
	engine      engine.Name
	constraints models.Constraints
}

func New(cfg Config) *Worker {
	if cfg.Engine == "" {
		cfg.Engine = engine.Stockfish17Lite
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Second
	}
	return &Worker{
		cfg:    cfg,
		log:    cfg.Logger,
		caches: make(map[cacheKey]*analysis.Cache),
	}
}

// WorkLoop runs the main worker loop until ctx is done.
func (w *Worker) WorkLoop(ctx context.Context) error {
	w.log.Info().Str("engine", string(w.cfg.Engine)).Msg("starting worker")

	for {
		job, ok, err := w.cfg.Source.NextJob(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			w.log.Warn().Err(err).Dur("backoff", w.cfg.Backoff).Msg("error getting job")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.cfg.Backoff):
			}
			continue
		}
		if !ok {
			continue
		}

		if err := w.ProcessJob(ctx, job); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Error().Err(err).Str("job", job.ID).Msg("job failed")
		}
	}
}

// ProcessJob analyses one job and reports every position to the sink.
func (w *Worker) ProcessJob(ctx context.Context, job models.Job) error {
	log := w.log.With().Str("job", job.ID).Logger()

	line, err := game.Parse(job.PGN, job.FEN, job.Moves)
	if err != nil {
		return w.fail(ctx, job, "", fmt.Errorf("invalid game: %w", err))
	}

	name := w.cfg.Engine
	if job.Engine != "" {
		name = engine.Name(job.Engine)
	}
	session, err := w.session(ctx, name)
	if err != nil {
		return w.fail(ctx, job, name, err)
	}

	constraints := w.constraints(job)
	pipeline := analysis.New(session, analysis.Config{
		Constraints: constraints,
		Thresholds:  w.cfg.Thresholds,
		Cache:       w.cache(name, constraints),
		Book:        w.cfg.Book,
		Logger:      log,
	})

	log.Info().Str("engine", string(name)).Int("positions", line.Len()).Msg("processing job")
	var sinkErr error
	report, err := pipeline.AnalyzeLine(ctx, line, func(ev analysis.Event) {
		if sinkErr != nil {
			return
		}
		sinkErr = w.cfg.Sink.SubmitResult(ctx, toResult(job.ID, ev.PositionResult))
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return w.fail(ctx, job, name, fmt.Errorf("analysis: %w", err))
	}
	if sinkErr != nil {
		return fmt.Errorf("submit result: %w", sinkErr)
	}

	return w.cfg.Sink.CompleteJob(ctx, models.Completion{
		JobID:    job.ID,
		Engine:   string(name),
		Opening:  report.Opening,
		Accuracy: accuracy(report),
	})
}

// session reuses the slot's session when it runs the wanted engine and is
// not being shut down; otherwise it selects a new one, which retires the
// old.
func (w *Worker) session(ctx context.Context, name engine.Name) (*engine.Session, error) {
	if current := w.cfg.Slot.Current(); current != nil && current.Name() == name && usable(current.State()) {
		return current, nil
	}
	id, err := name.Identity()
	if err != nil {
		return nil, err
	}
	return w.cfg.Slot.Select(ctx, id, w.cfg.Workers)
}

func usable(state engine.State) bool {
	return state == engine.Idle || state == engine.Searching
}

func (w *Worker) constraints(job models.Job) models.Constraints {
	c := w.cfg.Constraints
	if job.Depth > 0 || job.TimeMS > 0 {
		c.Depth = job.Depth
		c.MoveTime = time.Duration(job.TimeMS) * time.Millisecond
	}
	if job.MultiPV > 0 {
		c.MultiPV = job.MultiPV
	}
	return c
}

func (w *Worker) cache(name engine.Name, c models.Constraints) *analysis.Cache {
	key := cacheKey{engine: name, constraints: c}
	if cache, ok := w.caches[key]; ok {
		return cache
	}
	cache, err := analysis.NewCache(w.cfg.CacheSize)
	if err != nil {
		w.log.Warn().Err(err).Msg("evaluation cache disabled")
		return nil
	}
	w.caches[key] = cache
	return cache
}

func (w *Worker) fail(ctx context.Context, job models.Job, name engine.Name, cause error) error {
	if err := w.cfg.Sink.CompleteJob(ctx, models.Completion{
		JobID:  job.ID,
		Engine: string(name),
		Error:  cause.Error(),
	}); err != nil {
		w.log.Warn().Err(err).Str("job", job.ID).Msg("failed to report job failure")
	}
	return cause
}

func toResult(jobID string, r analysis.PositionResult) models.Result {
	result := models.Result{
		JobID:          jobID,
		Index:          r.Index,
		FEN:            r.FEN,
		Move:           r.Move,
		SAN:            r.SAN,
		Classification: r.Classification,
	}
	if r.Evaluation != nil {
		score := r.Evaluation.WhiteScore()
		result.Eval = &score
		result.BestMove = r.Evaluation.BestMove
		result.Depth = r.Evaluation.Depth
		result.PV = r.Evaluation.PV
	}
	if r.Err != nil {
		result.Error = r.Err.Error()
	}
	return result
}

func accuracy(report analysis.Report) map[string]float64 {
	if len(report.Accuracy) == 0 {
		return nil
	}
	out := make(map[string]float64, len(report.Accuracy))
	for color, value := range report.Accuracy {
		out[strings.ToLower(color.Name())] = value
	}
	return out
}
