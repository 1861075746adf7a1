package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const defaultHashMB = 16

// Options is what every variant needs from its environment to start.
type Options struct {
	EnginesDir string
	Launch     Launcher
	// Resolve maps a binary name to what Launch is given. Defaults to a
	// lookup in EnginesDir, then PATH.
	Resolve func(binary string) (string, error)

	HashMB           int
	AnalysisTimeout  time.Duration
	HandshakeTimeout time.Duration
	ShutdownTimeout  time.Duration
	DrainTimeout     time.Duration
	DesyncThreshold  int
	Logger           zerolog.Logger
}

// Variant is one engine family/version. Variants differ only behind
// Create; nothing outside this file branches on which one is running.
type Variant interface {
	// Legacy variants run on any host and skip the capability probe.
	Legacy() bool
	// Create starts a session. flavor is the variant's lite/NNUE flag and
	// workers is clamped to what the variant supports.
	Create(ctx context.Context, opts Options, flavor bool, workers int) (*Session, error)
}

type stockfish17 struct{}

func (stockfish17) Legacy() bool { return false }

func (stockfish17) Create(ctx context.Context, opts Options, lite bool, workers int) (*Session, error) {
	name, binary, hash := Stockfish17, "stockfish-17", opts.hash()
	if lite {
		name, binary, hash = Stockfish17Lite, "stockfish-17-lite", min(hash, 16)
	}
	return openSession(ctx, opts, sessionSpec{
		name:    name,
		binary:  binary,
		workers: clampWorkers(workers, 1, 8, 2),
		options: []string{
			setOption("Threads", "1"),
			setOption("Hash", strconv.Itoa(hash)),
			setOption("UCI_ShowWDL", "false"),
		},
	})
}

type stockfish16_1 struct{}

func (stockfish16_1) Legacy() bool { return false }

func (stockfish16_1) Create(ctx context.Context, opts Options, lite bool, workers int) (*Session, error) {
	name, binary, hash := Stockfish16_1, "stockfish-16.1", opts.hash()
	if lite {
		name, binary, hash = Stockfish16_1Lite, "stockfish-16.1-lite", min(hash, 16)
	}
	return openSession(ctx, opts, sessionSpec{
		name:    name,
		binary:  binary,
		workers: clampWorkers(workers, 1, 8, 2),
		options: []string{
			setOption("Threads", "1"),
			setOption("Hash", strconv.Itoa(hash)),
		},
	})
}

// stockfish16 ships one binary per evaluation mode; the classical build
// has NNUE switched off explicitly.
type stockfish16 struct{}

func (stockfish16) Legacy() bool { return false }

func (stockfish16) Create(ctx context.Context, opts Options, nnue bool, workers int) (*Session, error) {
	name, binary, useNNUE := Stockfish16, "stockfish-16", "false"
	if nnue {
		name, binary, useNNUE = Stockfish16NNUE, "stockfish-16-nnue", "true"
	}
	return openSession(ctx, opts, sessionSpec{
		name:    name,
		binary:  binary,
		workers: clampWorkers(workers, 1, 4, 1),
		options: []string{
			setOption("Use NNUE", useNNUE),
			setOption("Threads", "1"),
			setOption("Hash", strconv.Itoa(opts.hash())),
		},
	})
}

// stockfish11 is the fallback that must run everywhere: one worker, no
// NNUE, generic build.
type stockfish11 struct{}

func (stockfish11) Legacy() bool { return true }

func (stockfish11) Create(ctx context.Context, opts Options, _ bool, workers int) (*Session, error) {
	return openSession(ctx, opts, sessionSpec{
		name:    Stockfish11,
		binary:  "stockfish-11",
		workers: clampWorkers(workers, 1, 1, 1),
		options: []string{
			setOption("Threads", "1"),
			setOption("Hash", strconv.Itoa(min(opts.hash(), 64))),
		},
	})
}

type sessionSpec struct {
	name    Name
	binary  string
	workers int
	options []string
}

func openSession(ctx context.Context, opts Options, spec sessionSpec) (*Session, error) {
	resolve := opts.Resolve
	if resolve == nil {
		resolve = func(binary string) (string, error) { return resolveBinary(opts.EnginesDir, binary) }
	}
	binary, err := resolve(spec.binary)
	if err != nil {
		return nil, unavailable("resolve binary", err)
	}

	identity, _ := spec.name.Identity()
	log := opts.Logger.With().Str("engine", string(spec.name)).Logger()
	s := &Session{
		name:            spec.name,
		identity:        identity,
		binary:          binary,
		log:             log,
		timeout:         opts.AnalysisTimeout,
		drainTimeout:    opts.DrainTimeout,
		shutdownTimeout: opts.ShutdownTimeout,
		desyncThreshold: opts.DesyncThreshold,
		terminated:      make(chan struct{}),
	}
	if s.timeout <= 0 {
		s.timeout = defaultAnalysisTimeout
	}
	if s.drainTimeout <= 0 {
		s.drainTimeout = defaultDrainTimeout
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = defaultShutdownTimeout
	}
	if s.desyncThreshold <= 0 {
		s.desyncThreshold = defaultDesyncThreshold
	}

	pool, err := SpawnPool(ctx, PoolConfig{
		Binary:           binary,
		Launch:           opts.Launch,
		Options:          spec.options,
		HandshakeTimeout: opts.HandshakeTimeout,
		ShutdownTimeout:  s.shutdownTimeout,
		DrainTimeout:     s.drainTimeout,
		Logger:           log,
		OnDesync:         s.desync,
	}, spec.workers)
	if err != nil {
		return nil, err
	}
	s.pool = pool

	log.Info().Str("binary", binary).Int("workers", spec.workers).Msg("engine session ready")
	return s, nil
}

func (o Options) hash() int {
	if o.HashMB > 0 {
		return o.HashMB
	}
	return defaultHashMB
}

// clampWorkers applies a variant's supported range; zero or negative means
// "use the variant default".
func clampWorkers(requested, lo, hi, def int) int {
	if requested <= 0 {
		return def
	}
	return max(lo, min(requested, hi))
}

func resolveBinary(dir, binary string) (string, error) {
	if dir != "" {
		candidate := filepath.Join(dir, binary)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	if found, err := exec.LookPath(binary); err == nil {
		return found, nil
	}
	if found, err := exec.LookPath("stockfish"); err == nil {
		return found, nil
	}
	return "", fmt.Errorf("%s not found in %q or PATH", binary, dir)
}
