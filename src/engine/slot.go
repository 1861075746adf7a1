package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SessionSelector starts sessions; *Selector implements it.
type SessionSelector interface {
	Select(ctx context.Context, id Identity, workers int) (*Session, error)
}

// Slot holds at most one live session. The latest Select wins: a session
// that resolves after a newer call started is shut down instead of adopted,
// and an adopted session replaces the previous one, which is shut down in
// the background.
type Slot struct {
	selector        SessionSelector
	log             zerolog.Logger
	shutdownTimeout time.Duration

	mu      sync.Mutex
	gen     uint64
	current *Session
	closed  bool
}

func NewSlot(selector SessionSelector, log zerolog.Logger) *Slot {
	return &Slot{
		selector:        selector,
		log:             log,
		shutdownTimeout: defaultShutdownTimeout,
	}
}

// Select starts a session for id and makes it the slot's session. On
// failure the previous session stays in place.
func (s *Slot) Select(ctx context.Context, id Identity, workers int) (*Session, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	session, err := s.selector.Select(ctx, id, workers)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		s.log.Debug().Str("engine", id.String()).Msg("discarding superseded engine session")
		s.retire(session)
		return nil, ErrSuperseded
	}
	previous := s.current
	s.current = session
	s.mu.Unlock()

	if previous != nil {
		go s.retire(previous)
	}
	return session, nil
}

// Current returns the live session, or nil.
func (s *Slot) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close shuts the live session down and refuses later adoptions.
func (s *Slot) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.gen++
	current := s.current
	s.current = nil
	s.mu.Unlock()

	if current == nil {
		return nil
	}
	return current.Shutdown(ctx)
}

func (s *Slot) retire(session *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := session.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Str("engine", string(session.Name())).Msg("failed to shut down replaced engine session")
	}
}
