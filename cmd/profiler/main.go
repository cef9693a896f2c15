package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shpitdev/stakeholder-profiler/internal/batch"
	"github.com/shpitdev/stakeholder-profiler/internal/config"
	"github.com/shpitdev/stakeholder-profiler/internal/httpapi"
	"github.com/shpitdev/stakeholder-profiler/internal/llm/gemini"
	"github.com/shpitdev/stakeholder-profiler/internal/pipeline"
	"github.com/shpitdev/stakeholder-profiler/internal/profile"
	"github.com/shpitdev/stakeholder-profiler/internal/progress"
	"github.com/shpitdev/stakeholder-profiler/internal/redact"
	"github.com/shpitdev/stakeholder-profiler/internal/version"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "version", "--version":
		_, _ = fmt.Fprintln(os.Stdout, version.Current)
		return
	case "serve":
		os.Exit(runServe(ctx, os.Args[2:]))
	case "profile":
		os.Exit(runProfile(ctx, os.Args[2:]))
	case "batch":
		os.Exit(runBatch(ctx, os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

// setup loads configuration and builds the coordinator shared by every command.
func setup(ctx context.Context, logger *zap.Logger) (config.Config, *pipeline.Coordinator, int) {
	if err := config.LoadDotEnv(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return config.Config{}, nil, 2
	}
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s\n", redact.Secrets(err.Error()))
		return config.Config{}, nil, 2
	}

	client, err := gemini.New(ctx, gemini.Config{
		APIKey:         cfg.APIKey,
		ResearchModel:  cfg.ResearchModel,
		SynthesisModel: cfg.SynthesisModel,
		BaseURL:        cfg.BaseURL,
		RateLimitRPS:   cfg.RateLimitRPS,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "gemini config error: %s\n", redact.Secrets(err.Error()))
		return config.Config{}, nil, 2
	}
	return cfg, pipeline.New(client, cfg.Pipeline, logger), 0
}

func runServe(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	port := fs.String("port", "", "Listen port (env: PORT, default 3000)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger, err := zap.NewProduction()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("version", version.Current))

	cfg, coord, code := setup(ctx, logger)
	if code != 0 {
		return code
	}
	if *port != "" {
		cfg.Port = *port
	}

	handler := httpapi.NewProfileHandler(coord, logger, httpapi.Options{HeartbeatInterval: cfg.HeartbeatInterval})
	// Streaming responses stay open for a whole run.
	writeTimeout := cfg.Pipeline.RunTimeout + time.Minute
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.NewRouter(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("research_model", cfg.ResearchModel),
			zap.String("synthesis_model", cfg.SynthesisModel),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
		return 1
	}
	logger.Info("server stopped")
	return 0
}

func runProfile(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	name := fs.String("name", "", "Full name of the person to profile (required)")
	role := fs.String("role", "", "Role or title")
	org := fs.String("organisation", "", "Organisation")
	fs.StringVar(org, "company", "", "Alias for --organisation")
	verbose := fs.Bool("v", false, "Log pipeline internals to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := cliLogger(*verbose)
	defer func() { _ = logger.Sync() }()

	_, coord, code := setup(ctx, logger)
	if code != 0 {
		return code
	}

	status := progress.SinkFunc(func(e progress.Event) {
		if e.Message != "" {
			_, _ = fmt.Fprintln(os.Stderr, e.Message)
		}
	})
	run, err := coord.Run(ctx, profile.Request{Name: *name, Role: *role, Organisation: *org}, status)
	if err != nil {
		var pe *pipeline.Error
		if errors.As(err, &pe) && pe.Raw != "" {
			_, _ = fmt.Fprintf(os.Stderr, "error: %s\nraw: %s\n", pe.Message, pe.Raw)
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "error: %s\n", redact.Secrets(err.Error()))
		}
		if errors.As(err, &pe) && pe.Kind == pipeline.KindInvalidRequest {
			return 2
		}
		return 1
	}
	return writeJSON(os.Stdout, run.Record)
}

func runBatch(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	inputPath := fs.String("input", "", "Input CSV file path (must include a 'name' column)")
	outputPath := fs.String("output", "", "Output JSONL file path (default stdout)")
	workers := fs.Int("workers", 0, "Number of concurrent runs (env: WORKERS)")
	failFast := fs.Bool("fail-fast", false, "Stop on the first failed row (env: FAIL_FAST)")
	verbose := fs.Bool("v", false, "Log pipeline internals to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inputPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "batch requires --input")
		return 2
	}

	logger := cliLogger(*verbose)
	defer func() { _ = logger.Sync() }()

	cfg, coord, code := setup(ctx, logger)
	if code != 0 {
		return code
	}
	if *workers <= 0 {
		*workers = cfg.Workers
	}
	policy := batch.FailurePolicyPartialOutput
	if *failFast || cfg.FailFast {
		policy = batch.FailurePolicyFailFast
	}

	in, err := os.Open(*inputPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "open input: %v\n", err)
		return 2
	}
	reqs, err := batch.ReadRequestsCSV(in)
	_ = in.Close()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		return 2
	}

	outs, err := batch.ProfileAll(ctx, reqs, coord, batch.Options{
		Workers:       *workers,
		FailurePolicy: policy,
		Progress: func(idx int, e progress.Event) {
			if e.Type != progress.EventNote && e.Type != progress.EventRetry {
				return
			}
			_, _ = fmt.Fprintf(os.Stderr, "[%d %s] %s\n", idx, reqs[idx].Name, e.Message)
		},
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "batch failed: %s\n", redact.Secrets(err.Error()))
		return 1
	}

	var w io.Writer = os.Stdout
	if *outputPath != "" {
		f, err := os.Create(*outputPath)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "create output: %v\n", err)
			return 1
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	if err := batch.WriteJSONL(w, outs); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}

	failed := 0
	for _, o := range outs {
		if o.Err != nil {
			failed++
		}
	}
	_, _ = fmt.Fprintf(os.Stderr, "profiled %d of %d\n", len(outs)-failed, len(outs))
	return 0
}

func cliLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func writeJSON(w io.Writer, v any) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	_, _ = fmt.Fprint(w, `profiler builds stakeholder profiles from public research.

Usage:
  profiler serve   [--port 3000]
  profiler profile --name "Jane Doe" [--role CEO] [--organisation Acme] [-v]
  profiler batch   --input people.csv [--output profiles.jsonl] [--workers N] [--fail-fast] [-v]
  profiler version

Environment:
  GEMINI_API_KEY                 required
  GEMINI_MODEL                   model for both stages (GEMINI_RESEARCH_MODEL / GEMINI_SYNTHESIS_MODEL override)
  GEMINI_BASE_URL                API base URL override
  PORT                           serve listen port
  RUN_TIMEOUT                    per-run budget (default 5m)
  RESEARCH_MAX_CHARS             research text passed to synthesis, 0 keeps all
  RATE_LIMIT_RPS                 global model call rate, 0 disables
  HEARTBEAT_INTERVAL             SSE keepalive interval (default 15s)
  {RESEARCH,SYNTHESIS}_RETRY_{STRATEGY,BASE_DELAY,MAX_ATTEMPTS}
  PROFILER_CONFIG                optional YAML file applied before the environment
`)
}
