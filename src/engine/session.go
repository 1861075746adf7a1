package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/notnil/chess"
	"github.com/rs/zerolog"

	"github.com/jacokyle01/game-review/src/models"
)

const (
	defaultAnalysisTimeout = 30 * time.Second
	defaultDesyncThreshold = 8
)

// State is the lifecycle state of a Session.
type State int

const (
	Idle State = iota
	Searching
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Searching:
		return "searching"
	case ShuttingDown:
		return "shutting down"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Position is the board a session searches, as FEN.
type Position struct {
	FEN string
}

// Info describes a running session.
type Info struct {
	Name     Name     `json:"name"`
	Identity Identity `json:"identity"`
	Binary   string   `json:"binary"`
	Workers  int      `json:"workers"`
	State    string   `json:"state"`
}

// Session is the uniform handle over a running engine variant. It is owned
// by the caller that created it; searches on one session never overlap.
type Session struct {
	name            Name
	identity        Identity
	binary          string
	pool            *WorkerPool
	log             zerolog.Logger
	timeout         time.Duration
	drainTimeout    time.Duration
	shutdownTimeout time.Duration
	desyncThreshold int

	mu       sync.Mutex
	state    State
	position *Position
	active   *Search
	starting uint64
	nextID   uint64
	desyncs  int

	terminateOnce sync.Once
	terminateErr  error
	shutdownCalls int
	terminated    chan struct{}
}

// SetPosition sets the board for the next search. It is only valid while
// the session is idle.
func (s *Session) SetPosition(pos Position) error {
	fen := strings.TrimSpace(pos.FEN)
	if fen == "" {
		return fmt.Errorf("fen must not be empty")
	}
	if strings.ContainsAny(fen, "\r\n") {
		return fmt.Errorf("fen must be single-line")
	}
	if _, err := chess.FEN(fen); err != nil {
		return fmt.Errorf("invalid fen %q: %w", fen, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return &InvalidStateError{Op: "set position", State: s.state}
	}
	s.position = &Position{FEN: fen}
	return nil
}

// StartAnalysis searches the current position. It may wait for a worker
// still finishing a stopped search. The returned Search streams partial
// evaluations and ends with one final evaluation.
func (s *Session) StartAnalysis(ctx context.Context, c models.Constraints) (*Search, error) {
	if c.MultiPV <= 0 {
		c.MultiPV = 1
	}

	s.mu.Lock()
	if s.state != Idle {
		state := s.state
		s.mu.Unlock()
		return nil, &InvalidStateError{Op: "start analysis", State: state}
	}
	if s.position == nil {
		s.mu.Unlock()
		return nil, &InvalidStateError{Op: "start analysis without a position", State: Idle}
	}
	s.nextID++
	id := s.nextID
	s.starting = id
	s.state = Searching
	fen := s.position.FEN
	s.mu.Unlock()

	w, err := s.pool.acquire(ctx)
	if err != nil {
		s.mu.Lock()
		if s.starting == id {
			s.starting = 0
			s.state = Idle
		}
		s.mu.Unlock()
		return nil, err
	}

	search := newSearch(id, fen, c.MultiPV)
	search.onEnd = s.searchEnded
	search.onDesync = func(line string) { s.desync(line) }

	s.mu.Lock()
	if s.starting != id {
		// stopped or shut down while waiting for a worker
		s.mu.Unlock()
		s.pool.release(w)
		return nil, ErrSearchCanceled
	}
	s.starting = 0
	s.active = search

	// halting and the deadline are bound to the worker running this search;
	// both are armed before the engine can emit anything for it
	search.halt = func() { w.halt(search, s.drainTimeout) }
	bound := searchBound(c, s.timeout)
	timer := time.AfterFunc(bound, func() {
		if search.end(ErrAnalysisTimeout) {
			s.log.Warn().Uint64("request", id).Dur("bound", bound).Msg("search timed out")
			search.halt()
		}
	})
	search.mu.Lock()
	search.timer = timer
	search.mu.Unlock()

	if err := w.begin(search, fen, goCommand(c)); err != nil {
		s.active = nil
		s.state = Idle
		s.mu.Unlock()
		err = unavailable("start search", err)
		search.end(err)
		return nil, err
	}
	s.mu.Unlock()

	s.log.Debug().Uint64("request", id).Str("fen", fen).Int("worker", w.id).Msg("search started")
	return search, nil
}

// Stop cancels the running search. When Stop returns, no further
// evaluation of that search can be observed. Stop is a no-op when idle.
func (s *Session) Stop() {
	s.mu.Lock()
	search := s.active
	if s.state == Searching {
		s.active = nil
		s.starting = 0
		s.state = Idle
	}
	s.mu.Unlock()

	if search != nil && search.end(ErrSearchCanceled) {
		search.halt()
		s.log.Debug().Uint64("request", search.id).Msg("search stopped")
	}
}

// Shutdown cancels any running search and releases every worker. It is
// idempotent: only the first call can report an error.
func (s *Session) Shutdown(ctx context.Context) error {
	s.terminate(ctx, ErrSearchCanceled)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownCalls++
	if s.shutdownCalls > 1 {
		return nil
	}
	return s.terminateErr
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session is terminated.
func (s *Session) Done() <-chan struct{} {
	return s.terminated
}

func (s *Session) Name() Name {
	return s.name
}

func (s *Session) Info() Info {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	return Info{
		Name:     s.name,
		Identity: s.identity,
		Binary:   s.binary,
		Workers:  s.pool.Size(),
		State:    state.String(),
	}
}

func (s *Session) terminate(ctx context.Context, cause error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.terminateOnce.Do(func() {
		s.mu.Lock()
		s.state = ShuttingDown
		search := s.active
		s.active = nil
		s.starting = 0
		s.mu.Unlock()

		if search != nil {
			search.end(cause)
		}

		closeCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
		err := s.pool.Terminate(closeCtx)
		cancel()

		s.mu.Lock()
		s.state = Terminated
		s.terminateErr = err
		s.mu.Unlock()
		close(s.terminated)

		if err != nil {
			s.log.Warn().Err(err).Msg("engine session shut down with errors")
		} else {
			s.log.Info().Msg("engine session shut down")
		}
	})
}

func (s *Session) searchEnded(search *Search, err error) {
	s.mu.Lock()
	if s.active == search {
		s.active = nil
		if s.state == Searching {
			s.state = Idle
		}
	}
	if err == nil {
		s.desyncs = 0
	}
	s.mu.Unlock()

	if err != nil && !errors.Is(err, ErrSearchCanceled) {
		s.log.Warn().Err(err).Uint64("request", search.id).Msg("search failed")
	}
}

// desync counts uncorrelated engine lines; past the threshold the engine
// is considered broken and the session is shut down.
func (s *Session) desync(line string) {
	s.mu.Lock()
	s.desyncs++
	count := s.desyncs
	s.mu.Unlock()

	s.log.Warn().Err(ErrProtocolDesync).Str("line", line).Int("count", count).Msg("discarded engine line")
	if count >= s.desyncThreshold {
		s.log.Error().Int("count", count).Msg("engine protocol out of sync, shutting session down")
		go s.terminate(context.Background(), fmt.Errorf("%w: %w", ErrEngineUnavailable, ErrProtocolDesync))
	}
}
