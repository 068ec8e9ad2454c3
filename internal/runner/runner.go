// Package runner performs one enlarge run: preflight, tree walk, and the
// bookkeeping around it.
package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dunamismax/enlarge/internal/domain"
	"github.com/dunamismax/enlarge/internal/id"
	"github.com/dunamismax/enlarge/internal/mirror"
	"github.com/dunamismax/enlarge/internal/preflight"
	"github.com/dunamismax/enlarge/internal/storage"
	"github.com/dunamismax/enlarge/internal/store"
	"github.com/dunamismax/enlarge/internal/webhook"
	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// finishTimeout bounds the ledger write and webhook once the walk is over.
const finishTimeout = 15 * time.Second

type Mirrorer interface {
	Mirror(ctx context.Context, srcDir, dstDir string) (mirror.Stats, error)
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

type publisher interface {
	Bucket() string
	EnsureBucket(ctx context.Context) error
	PublishTree(ctx context.Context, root, prefix string) (int, error)
}

type Options struct {
	UsageStore    store.UsageStore
	Webhook       webhookSender
	WebhookURL    string
	Publisher     publisher
	PublishPrefix string
	MetricsFile   string
}

type Runner struct {
	logger        *log.Logger
	walker        Mirrorer
	usageStore    store.UsageStore
	webhookClient webhookSender
	webhookURL    string
	publisher     publisher
	publishPrefix string
	metricsFile   string
	metrics       *metrics
	tracer        trace.Tracer
}

func New(logger *log.Logger, walker Mirrorer, opts Options) *Runner {
	usageStore := opts.UsageStore
	if usageStore == nil {
		usageStore = store.NewMemoryUsageStore()
	}

	return &Runner{
		logger:        logger,
		walker:        walker,
		usageStore:    usageStore,
		webhookClient: opts.Webhook,
		webhookURL:    opts.WebhookURL,
		publisher:     opts.Publisher,
		publishPrefix: opts.PublishPrefix,
		metricsFile:   opts.MetricsFile,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("enlarge/runner"),
	}
}

// Run validates the two directories and mirrors baseDir into outputDir.
// Precondition failures are returned before anything is written.
func (r *Runner) Run(ctx context.Context, baseDir, outputDir string) (domain.RunUsage, error) {
	if err := preflight.Check(baseDir, outputDir); err != nil {
		return domain.RunUsage{}, err
	}

	usage := domain.RunUsage{
		RunID:     id.New(),
		BaseDir:   baseDir,
		OutputDir: outputDir,
		StartedAt: time.Now().UTC(),
	}

	ctx, span := r.tracer.Start(ctx, "enlarge.run")
	span.SetAttributes(
		attribute.String("run.id", usage.RunID),
		attribute.String("run.base_dir", baseDir),
		attribute.String("run.output_dir", outputDir),
	)
	defer span.End()

	r.logger.Printf("starting run run_id=%s base_dir=%s output_dir=%s", usage.RunID, baseDir, outputDir)

	stats, err := r.walker.Mirror(ctx, baseDir, outputDir)
	usage = fillUsage(usage, stats, time.Now().UTC())
	if err != nil {
		usage.Status = domain.RunStatusFailed
		usage.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "mirror failed")
	} else {
		usage.Status = domain.RunStatusSucceeded
		span.SetStatus(codes.Ok, "mirrored")
	}

	r.logSummary(usage)
	r.metrics.observe(stats, usage.Status, usage.FinishedAt.Sub(usage.StartedAt).Seconds())

	// An interrupted run is still recorded and announced.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	r.recordUsage(finishCtx, usage)

	if err == nil {
		if pubErr := r.publish(ctx, usage); pubErr != nil {
			span.RecordError(pubErr)
			r.logger.Printf("publish failed run_id=%s err=%v", usage.RunID, pubErr)
		}
	}

	event := webhook.EventRunCompleted
	if err != nil {
		event = webhook.EventRunFailed
	}
	r.dispatchWebhook(finishCtx, event, usage)
	r.writeMetrics()

	if err != nil {
		return usage, fmt.Errorf("run %s: %w", usage.RunID, err)
	}
	return usage, nil
}

func fillUsage(usage domain.RunUsage, stats mirror.Stats, finishedAt time.Time) domain.RunUsage {
	usage.FilesCopied = stats.FilesCopied
	usage.ImagesScaled = stats.ImagesScaled
	usage.ImagesPassedThru = stats.ImagesPassedThru
	usage.ArchivesRewritten = stats.ArchivesRewritten
	usage.EntriesSkipped = stats.EntriesSkipped
	usage.PixelsProduced = stats.PixelsProduced
	usage.BytesRead = stats.BytesRead
	usage.BytesWritten = stats.BytesWritten
	usage.FinishedAt = finishedAt

	computeTimeMS := finishedAt.Sub(usage.StartedAt).Milliseconds()
	if computeTimeMS < 1 {
		computeTimeMS = 1
	}
	usage.ComputeTimeMS = computeTimeMS
	return usage
}

func (r *Runner) logSummary(usage domain.RunUsage) {
	r.logger.Printf(
		"finished run run_id=%s status=%s files_copied=%d images_scaled=%d images_passed_through=%d archives=%d entries_skipped=%d read=%s written=%s took=%s",
		usage.RunID,
		usage.Status,
		usage.FilesCopied,
		usage.ImagesScaled,
		usage.ImagesPassedThru,
		usage.ArchivesRewritten,
		usage.EntriesSkipped,
		humanize.Bytes(uint64(max(0, usage.BytesRead))),
		humanize.Bytes(uint64(max(0, usage.BytesWritten))),
		usage.FinishedAt.Sub(usage.StartedAt).Round(time.Millisecond),
	)
}

func (r *Runner) recordUsage(ctx context.Context, usage domain.RunUsage) {
	if err := r.usageStore.CreateUsageLog(ctx, usage); err != nil {
		r.logger.Printf("usage log write failed run_id=%s err=%v", usage.RunID, err)
	}
}

func (r *Runner) publish(ctx context.Context, usage domain.RunUsage) error {
	if r.publisher == nil {
		return nil
	}

	if err := r.publisher.EnsureBucket(ctx); err != nil {
		return err
	}

	prefix := storage.ObjectKey(r.publishPrefix, usage.RunID)
	n, err := r.publisher.PublishTree(ctx, usage.OutputDir, prefix)
	if err != nil {
		return err
	}
	r.logger.Printf("published run run_id=%s bucket=%s prefix=%s objects=%d", usage.RunID, r.publisher.Bucket(), prefix, n)
	return nil
}

func (r *Runner) dispatchWebhook(ctx context.Context, event string, usage domain.RunUsage) {
	if r.webhookURL == "" || r.webhookClient == nil {
		return
	}

	if err := r.webhookClient.Send(ctx, r.webhookURL, event, usage); err != nil {
		r.logger.Printf("webhook delivery failed run_id=%s event=%s err=%v", usage.RunID, event, err)
	}
}

func (r *Runner) writeMetrics() {
	if r.metricsFile == "" {
		return
	}
	if err := r.metrics.writeTextfile(r.metricsFile); err != nil {
		r.logger.Printf("metrics export failed err=%v", err)
	}
}
