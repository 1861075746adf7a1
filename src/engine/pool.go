package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultShutdownTimeout  = 3 * time.Second
	defaultDrainTimeout     = 5 * time.Second
	defaultMaxRestarts      = 1
)

// PoolConfig describes how to start the workers of one pool.
type PoolConfig struct {
	Binary           string
	Launch           Launcher
	Options          []string // setoption lines sent during the handshake
	HandshakeTimeout time.Duration
	ShutdownTimeout  time.Duration
	DrainTimeout     time.Duration
	MaxRestarts      int
	Logger           zerolog.Logger

	// OnDesync is told about every engine line that matched no request.
	OnDesync func(line string)
}

// WorkerPool owns the engine instances of one session. It is never shared
// between sessions and cannot be reused after Terminate.
type WorkerPool struct {
	cfg PoolConfig
	log zerolog.Logger

	idle chan *worker

	mu         sync.Mutex
	workers    []*worker
	live       int
	started    bool
	terminated bool
	changed    chan struct{}

	terminateOnce sync.Once
	terminateErr  error
}

// SpawnPool starts count workers and completes their handshakes. If any
// worker fails, every worker already started is terminated.
func SpawnPool(ctx context.Context, cfg PoolConfig, count int) (*WorkerPool, error) {
	if cfg.Launch == nil {
		cfg.Launch = ExecLauncher
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.MaxRestarts < 0 {
		cfg.MaxRestarts = 0
	} else if cfg.MaxRestarts == 0 {
		cfg.MaxRestarts = defaultMaxRestarts
	}
	if count < 1 {
		count = 1
	}

	// room for every slot plus stale entries of workers that died idle
	idle := make(chan *worker, count*(cfg.MaxRestarts+2))
	p := &WorkerPool{
		cfg:     cfg,
		log:     cfg.Logger.With().Str("binary", cfg.Binary).Logger(),
		idle:    idle,
		workers: make([]*worker, count),
		changed: make(chan struct{}),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		id := i
		g.Go(func() error {
			w, err := p.start(gctx, id, 0)
			p.mu.Lock()
			p.workers[id] = w
			p.mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		p.log.Error().Err(err).Int("workers", count).Msg("worker pool failed to start")
		_ = p.Terminate(context.Background())
		return nil, err
	}

	p.mu.Lock()
	p.live = count
	p.started = true
	for _, w := range p.workers {
		p.idle <- w
	}
	p.mu.Unlock()

	p.log.Debug().Int("workers", count).Msg("worker pool started")
	return p, nil
}

// start launches one engine and performs its handshake. On handshake
// failure the half-started worker is returned so Terminate can release it.
func (p *WorkerPool) start(ctx context.Context, id, restarts int) (*worker, error) {
	t, err := p.cfg.Launch(ctx, p.cfg.Binary)
	if err != nil {
		return nil, unavailable("launch", err)
	}
	w := newWorker(id, t, p)
	w.restarts = restarts
	go w.loop()

	hctx, cancel := context.WithTimeout(ctx, p.cfg.HandshakeTimeout)
	defer cancel()
	if err := w.handshake(hctx, p.cfg.Options); err != nil {
		return w, err
	}
	return w, nil
}

// Size reports how many workers are alive or being restarted.
func (p *WorkerPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// acquire hands out an idle worker, waiting while all workers are busy
// finishing earlier searches.
func (p *WorkerPool) acquire(ctx context.Context) (*worker, error) {
	for {
		p.mu.Lock()
		if p.terminated {
			p.mu.Unlock()
			return nil, fmt.Errorf("%w: worker pool terminated", ErrEngineUnavailable)
		}
		if p.live == 0 {
			p.mu.Unlock()
			return nil, fmt.Errorf("%w: no live workers", ErrEngineUnavailable)
		}
		changed := p.changed
		p.mu.Unlock()

		select {
		case w := <-p.idle:
			if w.alive() {
				return w, nil
			}
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (p *WorkerPool) release(w *worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminated || !w.alive() {
		return
	}
	p.idle <- w
}

// workerExited restarts a dead worker once; after that it is dropped.
func (p *WorkerPool) workerExited(w *worker) {
	p.mu.Lock()
	if p.terminated || !p.started {
		p.mu.Unlock()
		return
	}
	if w.restarts >= p.cfg.MaxRestarts {
		p.live--
		p.broadcastLocked()
		live := p.live
		p.mu.Unlock()
		p.log.Error().Int("worker", w.id).Int("live", live).Msg("engine worker exited")
		return
	}
	p.mu.Unlock()

	p.log.Warn().Int("worker", w.id).Msg("engine worker exited, restarting")
	go p.restart(w)
}

func (p *WorkerPool) restart(old *worker) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.HandshakeTimeout)
	defer cancel()
	_ = old.close(ctx)

	w, err := p.start(ctx, old.id, old.restarts+1)

	p.mu.Lock()
	if err != nil || p.terminated {
		if err != nil {
			p.live--
			p.broadcastLocked()
		}
		p.mu.Unlock()
		if err != nil {
			p.log.Error().Err(err).Int("worker", old.id).Msg("engine worker restart failed")
		}
		_ = w.close(context.Background())
		return
	}
	p.workers[old.id] = w
	p.idle <- w
	p.broadcastLocked()
	p.mu.Unlock()
}

func (p *WorkerPool) desync(w *worker, line string) {
	w.log.Warn().Str("line", line).Msg("discarding engine line with no pending request")
	if p.cfg.OnDesync != nil {
		p.cfg.OnDesync(line)
	}
}

func (p *WorkerPool) broadcastLocked() {
	close(p.changed)
	p.changed = make(chan struct{})
}

// Terminate releases every worker, including ones that never finished
// starting. It is safe to call more than once.
func (p *WorkerPool) Terminate(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p.terminateOnce.Do(func() {
		p.mu.Lock()
		p.terminated = true
		workers := append([]*worker(nil), p.workers...)
		p.live = 0
		p.broadcastLocked()
		p.mu.Unlock()

		var (
			mu   sync.Mutex
			errs []error
			g    errgroup.Group
		)
		for _, w := range workers {
			if w == nil {
				continue
			}
			w := w
			g.Go(func() error {
				if err := w.close(ctx); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()

		p.terminateErr = errors.Join(errs...)
		if p.terminateErr != nil {
			p.log.Warn().Err(p.terminateErr).Msg("worker pool terminated with errors")
		} else {
			p.log.Debug().Msg("worker pool terminated")
		}
	})
	return p.terminateErr
}
