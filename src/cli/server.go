package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jacokyle01/game-review/src/engine"
	"github.com/jacokyle01/game-review/src/primaryserver"
	"github.com/jacokyle01/game-review/src/worker"
)

// newServerCmd creates the server command
func newServerCmd(flags *rootFlags, d deps) *cobra.Command {
	var (
		addr    string
		noLocal bool
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the job server",
		Long: `Run the HTTP job server. Games posted to /analyze are queued, handed out
on /job and their results collected on /result.

Unless --no-local-worker is given, a worker in the same process analyses
queued games with the configured engine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := flags.load(cmd, d)
			if err != nil {
				return err
			}
			defer e.close()
			if addr != "" {
				e.cfg.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := primaryserver.NewServer(e.cfg.QueueSize, e.log)
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.StartServer(ctx, e.cfg.Addr)
			})
			if !noLocal {
				g.Go(func() error {
					return e.runWorker(ctx, server, server)
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noLocal, "no-local-worker", false, "Only queue jobs; leave analysis to remote clients")

	return cmd
}

// newClientCmd creates the client command
func newClientCmd(flags *rootFlags, d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client [server_url]",
		Short: "Run a worker that pulls jobs from a remote server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.load(cmd, d)
			if err != nil {
				return err
			}
			defer e.close()

			serverURL := "http://localhost:8080"
			if len(args) > 0 {
				serverURL = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := worker.NewClient(serverURL)
			e.log.Info().Str("server", serverURL).Msg("connecting worker")
			return e.runWorker(ctx, client, client)
		},
	}
	return cmd
}

// runWorker runs a worker loop until ctx is done, then shuts its engine
// down.
func (e *env) runWorker(ctx context.Context, source worker.JobSource, sink worker.ResultSink) error {
	slot := engine.NewSlot(e.selector(), e.log)
	err := e.newWorker(source, sink, slot).WorkLoop(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
	defer cancel()
	return errors.Join(err, slot.Close(closeCtx))
}
