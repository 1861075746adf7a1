package primaryserver

import (
	"context"
	"fmt"
	"sort"

	"github.com/jacokyle01/game-review/src/models"
)

// SubmitResult stores the analysis of one position. A position reported
// twice keeps the latest result.
func (s *Server) SubmitResult(_ context.Context, result models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[result.JobID]
	if !ok {
		return fmt.Errorf("unknown job %q", result.JobID)
	}

	i := sort.Search(len(batch.Results), func(i int) bool { return batch.Results[i].Index >= result.Index })
	if i < len(batch.Results) && batch.Results[i].Index == result.Index {
		batch.Results[i] = result
	} else {
		batch.Results = append(batch.Results, models.Result{})
		copy(batch.Results[i+1:], batch.Results[i:])
		batch.Results[i] = result
		batch.Completed++
	}

	s.log.Debug().
		Str("batch", batch.ID).
		Int("completed", batch.Completed).
		Int("total", batch.Total).
		Str("classification", result.Classification.String()).
		Msg("received position result")
	return nil
}

// CompleteJob marks a batch done.
func (s *Server) CompleteJob(_ context.Context, c models.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[c.JobID]
	if !ok {
		return fmt.Errorf("unknown job %q", c.JobID)
	}
	batch.Done = true
	batch.Opening = c.Opening
	batch.Accuracy = c.Accuracy
	batch.Error = c.Error
	if c.Engine != "" {
		batch.Engine = c.Engine
	}

	event := s.log.Info()
	if c.Error != "" {
		event = s.log.Warn().Str("error", c.Error)
	}
	event.Str("batch", batch.ID).Int("completed", batch.Completed).Int("total", batch.Total).Msg("batch complete")
	return nil
}

// GetResult returns a snapshot of a job's batch.
func (s *Server) GetResult(jobID string) (models.Batch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, ok := s.batches[jobID]
	if !ok {
		return models.Batch{}, false
	}
	snapshot := *batch
	snapshot.Results = append([]models.Result(nil), batch.Results...)
	return snapshot, true
}
