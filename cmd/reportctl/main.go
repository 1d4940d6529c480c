package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kirillkom/audio-report-client/internal/adapters/terminal"
	"github.com/kirillkom/audio-report-client/internal/bootstrap"
	"github.com/kirillkom/audio-report-client/internal/config"
	"github.com/kirillkom/audio-report-client/internal/core/domain"
	"github.com/kirillkom/audio-report-client/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/audio-report-client/internal/observability/logging"
	"github.com/kirillkom/audio-report-client/internal/observability/metrics"
)

const usage = `usage:
  reportctl submit [-model SIZE] [-format text|html|xlsx] [-out DIR] FILE
  reportctl report [-format text|html|xlsx] [-out DIR] JOB_ID
  reportctl regenerate -prompt TEXT [-format text|html|xlsx] [-out DIR] JOB_ID
  reportctl watch
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return 1
	}
	slog.SetDefault(logging.NewJSONLogger("reportctl", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := command{cfg: cfg, stdout: stdout, stderr: stderr}
	switch args[0] {
	case "submit":
		return cmd.submit(ctx, args[1:])
	case "report":
		return cmd.report(ctx, args[1:])
	case "regenerate":
		return cmd.regenerate(ctx, args[1:])
	case "watch":
		return cmd.watch(ctx)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}
}

type command struct {
	cfg    config.Config
	stdout io.Writer
	stderr io.Writer
}

type outputFlags struct {
	format *string
	out    *string
}

func (c command) outputFlags(fs *flag.FlagSet) outputFlags {
	return outputFlags{
		format: fs.String("format", c.cfg.OutputFormat, "report format: text, html or xlsx"),
		out:    fs.String("out", c.cfg.OutputDir, "directory for report files (default: stdout)"),
	}
}

func (c command) submit(ctx context.Context, args []string) int {
	fs := c.flagSet("submit")
	model := fs.String("model", c.cfg.WhisperModelSize, "whisper model size: tiny, base, small, medium or large")
	output := c.outputFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprint(c.stderr, usage)
		return 2
	}

	view, err := c.newView(output)
	if err != nil {
		fmt.Fprintf(c.stderr, "%v\n", err)
		return 2
	}
	app, stopApp, err := c.start(ctx, view)
	if err != nil {
		fmt.Fprintf(c.stderr, "bootstrap error: %v\n", err)
		return 1
	}
	defer stopApp()

	path := fs.Arg(0)
	audio, err := os.Open(path)
	if err != nil {
		view.ShowError(domain.NewError(domain.ErrValidation, fmt.Sprintf("Cannot read audio file %s.", path), err))
		return 1
	}
	defer audio.Close()

	submission := domain.Submission{
		Filename:  filepath.Base(path),
		Audio:     audio,
		ModelSize: *model,
	}
	if err := app.Lifecycle.Submit(ctx, submission); err != nil {
		return 1
	}
	if err := view.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(c.stderr, "cancelled")
		}
		return 1
	}
	return 0
}

func (c command) report(ctx context.Context, args []string) int {
	fs := c.flagSet("report")
	output := c.outputFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprint(c.stderr, usage)
		return 2
	}

	view, err := c.newView(output)
	if err != nil {
		fmt.Fprintf(c.stderr, "%v\n", err)
		return 2
	}
	app, stopApp, err := c.start(ctx, view)
	if err != nil {
		fmt.Fprintf(c.stderr, "bootstrap error: %v\n", err)
		return 1
	}
	defer stopApp()

	return c.showReport(ctx, app, view, fs.Arg(0))
}

func (c command) regenerate(ctx context.Context, args []string) int {
	fs := c.flagSet("regenerate")
	prompt := fs.String("prompt", "", "custom analysis prompt")
	output := c.outputFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprint(c.stderr, usage)
		return 2
	}

	view, err := c.newView(output)
	if err != nil {
		fmt.Fprintf(c.stderr, "%v\n", err)
		return 2
	}
	app, stopApp, err := c.start(ctx, view)
	if err != nil {
		fmt.Fprintf(c.stderr, "bootstrap error: %v\n", err)
		return 1
	}
	defer stopApp()

	jobID := fs.Arg(0)
	if err := app.Reports.Regenerate(ctx, jobID, *prompt); err != nil {
		view.ShowError(err)
		return 1
	}
	view.ShowStatus("Prompt submitted. Reloading report...")
	return c.showReport(ctx, app, view, jobID)
}

func (c command) watch(ctx context.Context) int {
	if c.cfg.NATSURL == "" {
		fmt.Fprintln(c.stderr, "watch requires NATS_URL")
		return 2
	}
	view := terminal.NewView(c.stderr, c.stdout, terminal.FormatText, nil)
	app, stopApp, err := c.start(ctx, view)
	if err != nil {
		fmt.Fprintf(c.stderr, "bootstrap error: %v\n", err)
		return 1
	}
	defer stopApp()

	err = app.Events.SubscribeJobEvents(ctx, func(_ context.Context, event domain.JobEvent) error {
		line := fmt.Sprintf("%s %-9s %s", event.Timestamp.Format(time.RFC3339), event.Type, event.JobID)
		if event.Message != "" {
			line += " " + event.Message
		}
		_, err := fmt.Fprintln(c.stdout, line)
		return err
	})
	if err != nil {
		fmt.Fprintf(c.stderr, "watch error: %v\n", err)
		return 1
	}
	return 0
}

func (c command) showReport(ctx context.Context, app *bootstrap.App, view *terminal.View, jobID string) int {
	fragment, err := app.Reports.Load(ctx, jobID)
	if err != nil {
		view.ShowError(err)
		return 1
	}
	view.ShowReport(strings.TrimSpace(jobID), fragment)
	if view.Err() != nil {
		return 1
	}
	return 0
}

func (c command) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func (c command) newView(output outputFlags) (*terminal.View, error) {
	format, err := terminal.ParseFormat(*output.format)
	if err != nil {
		return nil, err
	}
	dir := strings.TrimSpace(*output.out)
	if dir == "" {
		if format.Binary() {
			return nil, fmt.Errorf("%s output requires -out DIR", format)
		}
		return terminal.NewView(c.stderr, c.stdout, format, nil), nil
	}
	store, err := localfs.New(dir)
	if err != nil {
		return nil, err
	}
	return terminal.NewView(c.stderr, c.stdout, format, store), nil
}

func (c command) start(ctx context.Context, view *terminal.View) (*bootstrap.App, func(), error) {
	app, err := bootstrap.New(ctx, c.cfg, view)
	if err != nil {
		return nil, nil, err
	}
	stopMetrics := serveMetrics(c.cfg.MetricsAddr, app.Metrics)
	return app, func() {
		app.Close()
		stopMetrics()
	}, nil
}

func serveMetrics(addr string, m *metrics.ClientMetrics) func() {
	if strings.TrimSpace(addr) == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics_listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics_server_failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics_shutdown_failed", "error", err)
		}
	}
}
