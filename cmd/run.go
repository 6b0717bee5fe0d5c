package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/teemow/inboxtriage/internal/checkpoint"
	"github.com/teemow/inboxtriage/internal/engine"
	"github.com/teemow/inboxtriage/internal/logging"
	"github.com/teemow/inboxtriage/internal/server"
	"github.com/teemow/inboxtriage/internal/tui"
)

// errAborted is returned when the user declines to discard a checkpoint.
var errAborted = errors.New("aborted: existing checkpoint kept")

type runOptions struct {
	resume      bool
	yes         bool
	useTUI      bool
	metricsAddr string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Classify and label the messages matching the query",
		Long: `Classify every message matching the Gmail query with the local model and
label it "AI/Important" or "AI/Low Priority". An HTML report is written when
the run completes.

Progress is checkpointed after every batch. Press Ctrl+C to stop: the
checkpoint is saved and "inboxtriage run --resume" continues from there.
Without --resume an existing checkpoint is discarded after confirmation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTriage(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Continue from the saved checkpoint")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Discard an existing checkpoint without asking")
	cmd.Flags().BoolVar(&opts.useTUI, "tui", false, "Show progress in a terminal UI")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and health endpoints on this address during the run (e.g. :9090)")
	cmd.Flags().String("query", "", "Gmail search query (default: is:unread)")
	cmd.Flags().String("mode", "", "Classification mode: chunked or sequential")
	cmd.Flags().Int("batch-size", 0, "Messages per batch")
	cmd.Flags().Int("concurrency", 0, "Parallel oracle requests in chunked mode")
	cmd.Flags().String("model", "", "Ollama model name")
	cmd.Flags().String("oracle-url", "", "Ollama base URL")

	return cmd
}

var runBindings = map[string]string{
	"query":                "query",
	"pipeline.mode":        "mode",
	"pipeline.batch_size":  "batch-size",
	"pipeline.concurrency": "concurrency",
	"oracle.model":         "model",
	"oracle.url":           "oracle-url",
}

func runTriage(cmd *cobra.Command, opts runOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cmd, runBindings)
	if err != nil {
		return err
	}
	defer a.shutdown(context.Background())

	if !opts.resume {
		if err := confirmDiscard(a.checkpointStore(), opts.yes, cmd.InOrStdin()); err != nil {
			if errors.Is(err, errAborted) {
				fmt.Fprintln(cmd.OutOrStdout(), err)
				return nil
			}
			return err
		}
	}

	var ui *tui.UI
	var observer engine.Observer = consoleObserver(cmd.OutOrStdout())
	if opts.useTUI {
		ui = tui.New("inboxtriage")
		observer = ui.Observer()
	}

	p, err := a.newPipeline(ctx, observer)
	if err != nil {
		return err
	}

	if opts.metricsAddr != "" {
		stopMetrics, err := startRunMetricsServer(ctx, a, p, opts.metricsAddr)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	var res engine.Result
	if ui != nil {
		res, err = ui.Run(ctx, p.engine, opts.resume)
		if err != nil {
			return err
		}
	} else {
		res, err = runWithSignals(ctx, p.engine, opts.resume)
		if err != nil {
			return err
		}
	}

	printSummary(cmd.OutOrStdout(), res)
	if res.Outcome == engine.OutcomeFailed {
		return res.Err
	}
	return nil
}

var notifyContext = signal.NotifyContext

// runWithSignals starts eng and turns the first SIGINT/SIGTERM into a
// cooperative stop. A second signal gets the default handling and kills the
// process.
func runWithSignals(ctx context.Context, eng *engine.Engine, resume bool) (engine.Result, error) {
	sigCtx, cancel := notifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := eng.Start(ctx, resume); err != nil {
		return engine.Result{}, err
	}

	done := make(chan engine.Result, 1)
	go func() { done <- eng.Wait() }()

	select {
	case res := <-done:
		return res, nil
	case <-sigCtx.Done():
		cancel()
		eng.Stop()
		return <-done, nil
	}
}

// confirmDiscard asks before a fresh run deletes an existing checkpoint.
func confirmDiscard(store *checkpoint.Store, yes bool, in io.Reader) error {
	if yes || !store.Exists() {
		return nil
	}

	summary := "A checkpoint from an interrupted run exists."
	if state, err := store.Load(); err == nil {
		summary = fmt.Sprintf("A checkpoint from an interrupted run exists (%d/%d done).", state.Done(), state.Total())
	}

	if f, ok := in.(*os.File); !ok || !isTerminal(f) {
		return fmt.Errorf("%s Use --resume to continue it or --yes to start fresh", summary)
	}

	discard := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Start fresh?").
				Description(summary+" Starting fresh discards it.").
				Affirmative("Yes, start fresh").
				Negative("Cancel").
				Value(&discard),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if !discard {
		return errAborted
	}
	return nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// consoleObserver prints the human readable run log to w.
func consoleObserver(w io.Writer) engine.Observer {
	return engine.ObserverFuncs{
		Log: func(msg string) {
			fmt.Fprintln(w, msg)
		},
	}
}

func printSummary(w io.Writer, res engine.Result) {
	switch res.Outcome {
	case engine.OutcomeCompleted:
		fmt.Fprintf(w, "Run %s completed: %d messages classified.\n", res.RunID, res.Total)
		if res.ReportPath != "" {
			fmt.Fprintf(w, "Report: %s\n", res.ReportPath)
		}
	case engine.OutcomeEmpty:
		fmt.Fprintf(w, "Run %s completed: nothing to do.\n", res.RunID)
	case engine.OutcomeStopped:
		fmt.Fprintf(w, "Run %s stopped at %d/%d. Continue with: inboxtriage run --resume\n", res.RunID, res.Done, res.Total)
	case engine.OutcomeFailed:
		fmt.Fprintf(w, "Run %s failed at %d/%d. The checkpoint was kept.\n", res.RunID, res.Done, res.Total)
	}
}

// startRunMetricsServer exposes metrics and health while the run lasts.
func startRunMetricsServer(ctx context.Context, a *app, p *pipeline, addr string) (func(), error) {
	sc, err := server.NewServerContext(ctx, p.engine, p.store, nil, a.cfg.ReportPath())
	if err != nil {
		return nil, fmt.Errorf("failed to create server context: %w", err)
	}
	ms, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: a.provider,
		Health:                  server.NewHealthChecker(sc),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	go func() {
		if err := ms.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", logging.Err(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ms.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics server shutdown failed", logging.Err(err))
		}
		_ = sc.Shutdown()
	}, nil
}
