package primaryserver

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jacokyle01/game-review/src/models"
)

const defaultQueueSize = 100

// Server queues game analysis jobs and collects their results batch by
// batch as workers report them.
type Server struct {
	jobs     chan models.Job
	pollWait time.Duration
	log      zerolog.Logger

	mu      sync.RWMutex
	jobMap  map[string]models.Job
	batches map[string]*models.Batch
}

// NewServer creates a new analysis server
func NewServer(queueSize int, log zerolog.Logger) *Server {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Server{
		jobs:     make(chan models.Job, queueSize),
		pollWait: 5 * time.Second,
		log:      log,
		jobMap:   make(map[string]models.Job),
		batches:  make(map[string]*models.Batch),
	}
}

// Handler routes the HTTP API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/job", s.handleGetJob)
	mux.HandleFunc("/result", s.handleResult)
	mux.HandleFunc("/complete", s.handleComplete)
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/queue", s.handleViewQueue)
	return mux
}

// StartServer serves the API on addr until ctx is done.
func (s *Server) StartServer(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
