package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/enlarge/internal/archive"
	"github.com/dunamismax/enlarge/internal/config"
	"github.com/dunamismax/enlarge/internal/mirror"
	"github.com/dunamismax/enlarge/internal/pipeline"
	"github.com/dunamismax/enlarge/internal/preflight"
	"github.com/dunamismax/enlarge/internal/runner"
	"github.com/dunamismax/enlarge/internal/storage"
	"github.com/dunamismax/enlarge/internal/store"
	"github.com/dunamismax/enlarge/internal/telemetry"
	"github.com/dunamismax/enlarge/internal/webhook"
	"go.opentelemetry.io/otel"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := log.New(os.Stdout, "[enlarge] ", log.LstdFlags|log.Lmsgprefix)

	baseDir, outputDir, err := parseArgs(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		logger.Printf("unable to parse arguments: %v", err)
		return exitUsage
	}
	logger.Printf("base directory: %s", baseDir)
	logger.Printf("output directory: %s", outputDir)

	cfg, err := config.Load()
	if err != nil {
		logger.Printf("unable to load configuration: %v", err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Trace, logger)
	if err != nil {
		logger.Printf("unable to set up tracing: %v", err)
		return exitError
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Printf("tracing shutdown failed: %v", err)
		}
	}()

	if err := pipeline.Startup(); err != nil {
		logger.Printf("unable to start image runtime: %v", err)
		return exitError
	}
	defer pipeline.Shutdown()

	opts, closeDeps, err := buildOptions(ctx, cfg, logger)
	if err != nil {
		logger.Printf("unable to initialise dependencies: %v", err)
		return exitError
	}
	defer closeDeps()

	rescaler := pipeline.NewRescaler(logger, pipeline.Options{
		UnsharpSigma:  float32(cfg.Resample.UnsharpSigma),
		UnsharpAmount: float32(cfg.Resample.UnsharpAmount),
	})
	walker := mirror.NewWalker(logger, rescaler, archive.NewRewriter(logger, rescaler), otel.Tracer("enlarge/mirror"))

	if _, err := runner.New(logger, walker, opts).Run(ctx, baseDir, outputDir); err != nil {
		if isPrecondition(err) {
			logger.Printf("%v", err)
		} else {
			logger.Printf("unexpected error: %v", err)
		}
		return exitError
	}
	return exitOK
}

// parseArgs accepts -b/--baseDir and -o/--outputDir; both are required.
func parseArgs(args []string, output io.Writer) (string, string, error) {
	var baseDir, outputDir string

	fs := flag.NewFlagSet("enlarge", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&baseDir, "b", "", "base directory holding the jars, zips and images to enlarge")
	fs.StringVar(&baseDir, "baseDir", "", "long form of -b")
	fs.StringVar(&outputDir, "o", "", "empty directory that receives the enlarged copy")
	fs.StringVar(&outputDir, "outputDir", "", "long form of -o")

	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	if fs.NArg() > 0 {
		return "", "", fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if baseDir == "" {
		return "", "", fmt.Errorf("%w: -b/--baseDir", preflight.ErrMissingArgument)
	}
	if outputDir == "" {
		return "", "", fmt.Errorf("%w: -o/--outputDir", preflight.ErrMissingArgument)
	}
	return baseDir, outputDir, nil
}

func buildOptions(ctx context.Context, cfg config.Config, logger *log.Logger) (runner.Options, func(), error) {
	opts := runner.Options{
		WebhookURL:    cfg.Webhook.URL,
		PublishPrefix: cfg.Storage.Prefix,
		MetricsFile:   cfg.Metrics.TextfilePath,
	}
	closeDeps := func() {}

	if cfg.Database.DSN != "" {
		pg, err := store.NewPostgresUsageStore(ctx, cfg.Database.DSN)
		if err != nil {
			return runner.Options{}, closeDeps, err
		}
		opts.UsageStore = pg
		closeDeps = func() {
			if err := pg.Close(); err != nil {
				logger.Printf("postgres close error: %v", err)
			}
		}
	}

	if cfg.Webhook.URL != "" {
		opts.Webhook = webhook.NewClient(webhook.Config{
			SigningSecret:  cfg.Webhook.SigningSecret,
			Timeout:        cfg.Webhook.Timeout,
			MaxAttempts:    cfg.Webhook.MaxAttempts,
			InitialBackoff: cfg.Webhook.InitialBackoff,
			MaxBackoff:     cfg.Webhook.MaxBackoff,
		})
	}

	if cfg.Storage.Enabled() {
		client, err := storage.NewClient(storage.Config{
			Endpoint: cfg.Storage.Endpoint,
			Access:   cfg.Storage.AccessKey,
			Secret:   cfg.Storage.SecretKey,
			Bucket:   cfg.Storage.Bucket,
			UseSSL:   cfg.Storage.UseSSL,
		})
		if err != nil {
			closeDeps()
			return runner.Options{}, func() {}, err
		}
		opts.Publisher = client
	}

	return opts, closeDeps, nil
}

func isPrecondition(err error) bool {
	for _, target := range []error{
		preflight.ErrMissingArgument,
		preflight.ErrSourceUnreadable,
		preflight.ErrSourceEmpty,
		preflight.ErrOutputUnwritable,
		preflight.ErrOutputNotEmpty,
		preflight.ErrOutputInSource,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
