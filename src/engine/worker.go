package engine

import (
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// pending is whatever currently owns a worker's output: a handshake step or
// a search. Lines that arrive with nothing pending are orphans.
type pending interface {
	// accept consumes one line and reports whether the request is complete.
	accept(line string) bool
	// abort ends the request because the worker went away.
	abort(err error)
}

// worker is one running engine instance.
type worker struct {
	id       int
	restarts int
	t        Transport
	pool     *WorkerPool
	log      zerolog.Logger

	mu      sync.Mutex
	current pending
	multiPV int

	exited chan struct{}
}

func newWorker(id int, t Transport, pool *WorkerPool) *worker {
	return &worker{
		id:      id,
		t:       t,
		pool:    pool,
		log:     pool.log.With().Int("worker", id).Logger(),
		multiPV: 1,
		exited:  make(chan struct{}),
	}
}

func (w *worker) loop() {
	for line := range w.t.Lines() {
		w.mu.Lock()
		p := w.current
		w.mu.Unlock()

		if p == nil {
			w.orphan(line)
			continue
		}
		if !p.accept(line) {
			continue
		}

		w.mu.Lock()
		if w.current == p {
			w.current = nil
		}
		w.mu.Unlock()
		if _, ok := p.(*Search); ok {
			w.pool.release(w)
		}
	}

	w.mu.Lock()
	p := w.current
	w.current = nil
	w.mu.Unlock()
	close(w.exited)

	if p != nil {
		p.abort(unavailable("read output", io.ErrUnexpectedEOF))
	}
	w.pool.workerExited(w)
}

// orphan handles a line no request is waiting for. Only terminal markers
// count as desync; idle chatter such as "info string" is harmless.
func (w *worker) orphan(line string) {
	if strings.HasPrefix(line, "bestmove") {
		w.pool.desync(w, line)
		return
	}
	w.log.Debug().Str("line", line).Msg("ignoring idle engine output")
}

func (w *worker) setPending(p pending) {
	w.mu.Lock()
	w.current = p
	w.mu.Unlock()
}

func (w *worker) isPending(p pending) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current == p
}

func (w *worker) alive() bool {
	select {
	case <-w.exited:
		return false
	default:
		return true
	}
}

func (w *worker) send(line string) error {
	w.log.Debug().Str("cmd", line).Msg("send")
	return w.t.Send(line)
}

// handshake runs the UCI start-up exchange: uci/uciok, the variant's
// options, then isready/readyok.
func (w *worker) handshake(ctx context.Context, options []string) error {
	if err := w.roundTrip(ctx, "uci", "uciok"); err != nil {
		return unavailable("wait uciok", err)
	}
	for _, option := range options {
		if err := w.send(option); err != nil {
			return unavailable("send option", err)
		}
	}
	if err := w.roundTrip(ctx, "isready", "readyok"); err != nil {
		return unavailable("wait readyok", err)
	}
	return nil
}

func (w *worker) roundTrip(ctx context.Context, command, want string) error {
	waiter := &lineWaiter{want: want, done: make(chan error, 1)}
	w.setPending(waiter)
	if err := w.send(command); err != nil {
		w.setPending(nil)
		return err
	}
	select {
	case err := <-waiter.done:
		return err
	case <-w.exited:
		return io.ErrUnexpectedEOF
	case <-ctx.Done():
		w.setPending(nil)
		return ctx.Err()
	}
}

// begin starts a search on this worker. The caller owns the worker.
func (w *worker) begin(s *Search, fen string, goCmd string) error {
	w.setPending(s)

	w.mu.Lock()
	changePV := s.multiPV != w.multiPV
	w.multiPV = s.multiPV
	w.mu.Unlock()

	if changePV {
		if err := w.send(setOption("MultiPV", strconv.Itoa(s.multiPV))); err != nil {
			return err
		}
	}
	if err := w.send("position fen " + fen); err != nil {
		return err
	}
	return w.send(goCmd)
}

// halt stops the engine searching for s and gives it drainTimeout to answer
// with its bestmove. An engine that never answers is recycled.
func (w *worker) halt(s *Search, drainTimeout time.Duration) {
	if err := w.send("stop"); err != nil {
		w.log.Warn().Err(err).Msg("failed to send stop")
	}
	time.AfterFunc(drainTimeout, func() {
		if !w.isPending(s) || !w.alive() {
			return
		}
		w.log.Warn().Uint64("request", s.id).Dur("waited", drainTimeout).Msg("engine ignored stop, recycling worker")
		w.close(context.Background())
	})
}

func (w *worker) close(ctx context.Context) error {
	if w == nil || w.t == nil {
		return nil
	}
	closeCtx, cancel := context.WithTimeout(ctx, w.pool.cfg.ShutdownTimeout)
	defer cancel()
	return w.t.Close(closeCtx)
}

type lineWaiter struct {
	want string
	done chan error
}

func (l *lineWaiter) accept(line string) bool {
	if line != l.want {
		return false
	}
	l.done <- nil
	return true
}

func (l *lineWaiter) abort(err error) {
	select {
	case l.done <- err:
	default:
	}
}

func setOption(name, value string) string {
	return "setoption name " + name + " value " + value
}
