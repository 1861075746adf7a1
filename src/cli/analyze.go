package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jacokyle01/game-review/src/engine"
	"github.com/jacokyle01/game-review/src/models"
)

// newAnalyzeCmd creates the analyze command
func newAnalyzeCmd(flags *rootFlags, d deps) *cobra.Command {
	var (
		pgnPath    string
		fen        string
		moves      []string
		engineName string
		depth      int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyse one game and print every move's classification",
		Long: `Analyse one game locally. The game is read from a PGN file (--pgn, "-" for
stdin), or given as UCI moves (--moves) played from --fen or the standard
start position.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := flags.load(cmd, d)
			if err != nil {
				return err
			}
			defer e.close()

			job := models.Job{ID: "local", FEN: fen, Moves: moves, Engine: engineName, Depth: depth}
			if pgnPath != "" {
				pgn, err := readPGN(cmd.InOrStdin(), pgnPath)
				if err != nil {
					return err
				}
				job.PGN = pgn
			}
			if job.Engine != "" {
				if _, err := engine.Name(job.Engine).Identity(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			slot := engine.NewSlot(e.selector(), e.log)
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
				defer cancel()
				_ = slot.Close(closeCtx)
			}()

			p := &printer{out: cmd.OutOrStdout(), json: asJSON}
			if err := e.newWorker(nil, p, slot).ProcessJob(ctx, job); err != nil {
				return err
			}
			return p.flush()
		},
	}

	cmd.Flags().StringVar(&pgnPath, "pgn", "", "PGN file to analyse, - for stdin")
	cmd.Flags().StringVar(&fen, "fen", "", "Start position")
	cmd.Flags().StringSliceVar(&moves, "moves", nil, "UCI moves, comma separated")
	cmd.Flags().StringVarP(&engineName, "engine", "e", "", "Engine to use (see 'engines')")
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "Search depth per position")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the finished batch as JSON")
	cmd.MarkFlagsMutuallyExclusive("pgn", "fen")
	cmd.MarkFlagsMutuallyExclusive("pgn", "moves")

	return cmd
}

func readPGN(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read pgn: %w", err)
	}
	return string(data), nil
}

// printer is the result sink of a local analysis. It prints positions as
// they complete, or the whole batch as JSON at the end.
type printer struct {
	out   io.Writer
	json  bool
	batch models.Batch
}

func (p *printer) SubmitResult(_ context.Context, r models.Result) error {
	p.batch.Results = append(p.batch.Results, r)
	p.batch.Completed++
	if !p.json {
		p.printResult(r)
	}
	return nil
}

func (p *printer) CompleteJob(_ context.Context, c models.Completion) error {
	p.batch.JobID = c.JobID
	p.batch.Engine = c.Engine
	p.batch.Opening = c.Opening
	p.batch.Accuracy = c.Accuracy
	p.batch.Error = c.Error
	p.batch.Total = p.batch.Completed
	p.batch.Done = true
	return nil
}

func (p *printer) printResult(r models.Result) {
	move := "start"
	if r.SAN != "" {
		move = r.SAN
	}
	eval := "-"
	if r.Eval != nil {
		eval = r.Eval.String()
	}
	line := fmt.Sprintf("%3d  %-8s %8s  %s", r.Index, move, eval, renderLabel(r.Classification))
	if r.BestMove != "" {
		line += dimStyle.Render("  best " + r.BestMove)
	}
	if r.Error != "" {
		line += dimStyle.Render("  (" + r.Error + ")")
	}
	fmt.Fprintln(p.out, line)
}

func (p *printer) flush() error {
	if p.json {
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(p.batch)
	}
	if p.batch.Opening != "" {
		fmt.Fprintf(p.out, "\n%s %s\n", headingStyle.Render("Opening:"), p.batch.Opening)
	}
	if len(p.batch.Accuracy) > 0 {
		sides := make([]string, 0, len(p.batch.Accuracy))
		for side := range p.batch.Accuracy {
			sides = append(sides, side)
		}
		sort.Sort(sort.Reverse(sort.StringSlice(sides)))
		parts := make([]string, 0, len(sides))
		for _, side := range sides {
			parts = append(parts, fmt.Sprintf("%s %.1f%%", side, p.batch.Accuracy[side]))
		}
		fmt.Fprintf(p.out, "%s %s\n", headingStyle.Render("Accuracy:"), strings.Join(parts, ", "))
	}
	return nil
}
