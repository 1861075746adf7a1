package primaryserver

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jacokyle01/game-review/src/models"
)

var (
	ErrQueueFull    = errors.New("job queue full")
	ErrDuplicateJob = errors.New("job already exists")
)

// AddJob queues a job and opens its batch. total is the number of
// positions the job's game has.
func (s *Server) AddJob(job models.Job, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[job.ID]; exists {
		return ErrDuplicateJob
	}
	select {
	case s.jobs <- job:
	default:
		s.log.Warn().Str("job", job.ID).Msg("job queue full, rejecting job")
		return ErrQueueFull
	}

	s.jobMap[job.ID] = job
	s.batches[job.ID] = &models.Batch{
		ID:      "batch_" + job.ID,
		JobID:   job.ID,
		Engine:  job.Engine,
		Results: make([]models.Result, 0, total),
		Total:   total,
	}
	s.log.Info().Str("job", job.ID).Int("positions", total).Msg("added job to queue")
	return nil
}

// GetJob returns the next job for a worker, waiting up to the poll window.
func (s *Server) GetJob() (models.Job, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.pollWait)
	defer cancel()
	return s.nextJob(ctx)
}

// NextJob waits for a job until ctx is done. It lets the server act as the
// job source of an in-process worker.
func (s *Server) NextJob(ctx context.Context) (models.Job, bool, error) {
	job, ok := s.nextJob(ctx)
	if !ok && ctx.Err() != nil {
		return models.Job{}, false, ctx.Err()
	}
	return job, ok, nil
}

func (s *Server) nextJob(ctx context.Context) (models.Job, bool) {
	select {
	case job := <-s.jobs:
		s.mu.Lock()
		delete(s.jobMap, job.ID)
		s.mu.Unlock()
		return job, true
	case <-ctx.Done():
		return models.Job{}, false
	case <-time.After(s.pollWait):
		return models.Job{}, false
	}
}

// Pending lists queued jobs that no worker has taken yet.
func (s *Server) Pending() []models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]models.Job, 0, len(s.jobMap))
	for _, job := range s.jobMap {
		pending = append(pending, job)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending
}
