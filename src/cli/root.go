// Package cli wires configuration, logging, engines and the job server into
// the game-review command line.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jacokyle01/game-review/src/analysis"
	"github.com/jacokyle01/game-review/src/config"
	"github.com/jacokyle01/game-review/src/engine"
	"github.com/jacokyle01/game-review/src/logging"
	"github.com/jacokyle01/game-review/src/models"
	"github.com/jacokyle01/game-review/src/worker"
)

// deps are the engine hooks the commands run with; tests swap in a fake
// engine farm.
type deps struct {
	launch  engine.Launcher
	resolve func(binary string) (string, error)
	probe   engine.Probe
}

type rootFlags struct {
	configPath string
	logLevel   string
	logFile    string
}

// NewRootCmd creates the root cobra command
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(version, deps{probe: engine.CPUProbe{}})
}

func newRootCmd(version string, d deps) *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:   "game-review",
		Short: "Analyse chess games with UCI engines and classify every move",
		Long: `game-review runs Stockfish over every position of a game, classifies each
move from best to blunder and reports accuracy per side.

It can analyse a single game locally, or run as a job server that workers
in this or other processes pull games from.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "Also write logs to this rotating file")

	rootCmd.AddCommand(newServerCmd(flags, d))
	rootCmd.AddCommand(newClientCmd(flags, d))
	rootCmd.AddCommand(newAnalyzeCmd(flags, d))
	rootCmd.AddCommand(newEnginesCmd(flags, d))

	return rootCmd
}

// env is what every command builds from its flags.
type env struct {
	cfg      config.Config
	log      zerolog.Logger
	closeLog func() error
	deps     deps
}

func (f *rootFlags) load(cmd *cobra.Command, d deps) (*env, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.logFile != "" {
		cfg.LogFile = f.logFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, closeLog := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Stderr: cmd.ErrOrStderr(),
	})
	return &env{cfg: cfg, log: log, closeLog: closeLog, deps: d}, nil
}

func (e *env) close() {
	_ = e.closeLog()
}

func (e *env) selector() *engine.Selector {
	opts := e.cfg.EngineOptions()
	opts.Launch = e.deps.launch
	opts.Resolve = e.deps.resolve
	opts.Logger = e.log
	return engine.NewSelector(opts, e.deps.probe)
}

func (e *env) constraints() models.Constraints {
	return models.Constraints{
		Depth:    e.cfg.Depth,
		MoveTime: e.cfg.MoveTime,
		MultiPV:  e.cfg.MultiPV,
	}
}

func (e *env) newWorker(source worker.JobSource, sink worker.ResultSink, slot *engine.Slot) *worker.Worker {
	return worker.New(worker.Config{
		Source:      source,
		Sink:        sink,
		Slot:        slot,
		Engine:      e.cfg.Engine,
		Workers:     e.cfg.Workers,
		Constraints: e.constraints(),
		Thresholds:  e.cfg.Thresholds,
		CacheSize:   e.cfg.CacheSize,
		Book:        analysis.NewBook(),
		Logger:      e.log,
	})
}
