// Package mirror copies a source tree into an output tree, enlarging images
// and rewriting archives on the way.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dunamismax/enlarge/internal/archive"
	"github.com/dunamismax/enlarge/internal/domain"
	"github.com/dunamismax/enlarge/internal/pipeline"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Logger interface {
	Printf(format string, args ...any)
}

type ImageWriter interface {
	WriteScaled(ctx context.Context, label string, data []byte, kind domain.Kind, w io.Writer) (pipeline.Outcome, error)
}

type ArchiveRewriter interface {
	Rewrite(ctx context.Context, srcPath, dstPath string) (archive.Result, error)
}

type Walker struct {
	logger   Logger
	images   ImageWriter
	archives ArchiveRewriter
	tracer   trace.Tracer
}

// NewWalker wires a walker; a nil tracer disables spans.
func NewWalker(logger Logger, images ImageWriter, archives ArchiveRewriter, tracer trace.Tracer) *Walker {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Walker{
		logger:   logger,
		images:   images,
		archives: archives,
		tracer:   tracer,
	}
}

// Mirror walks srcDir depth first in name order and reproduces it under
// dstDir. The first fatal error stops the walk; files written before it stay.
func (w *Walker) Mirror(ctx context.Context, srcDir, dstDir string) (Stats, error) {
	var stats Stats
	err := w.mirrorDir(ctx, srcDir, dstDir, &stats)
	return stats, err
}

func (w *Walker) mirrorDir(ctx context.Context, srcDir, dstDir string, stats *Stats) error {
	ctx, span := w.tracer.Start(ctx, "mirror.directory", trace.WithAttributes(attribute.String("dir.path", srcDir)))
	defer span.End()

	w.logger.Printf("processing directory path=%s", srcDir)

	children, err := os.ReadDir(srcDir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list directory")
		return fmt.Errorf("list directory %s: %w", srcDir, err)
	}

	for _, child := range children {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		srcPath := filepath.Join(srcDir, child.Name())
		dstPath := filepath.Join(dstDir, child.Name())

		// Stat follows symlinks so linked directories are descended into.
		info, err := os.Stat(srcPath)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stat entry")
			return fmt.Errorf("stat %s: %w", srcPath, err)
		}

		if info.IsDir() {
			if err := w.makeDir(dstPath, stats); err != nil {
				return err
			}
			if err := w.mirrorDir(ctx, srcPath, dstPath, stats); err != nil {
				return err
			}
			continue
		}

		if err := w.mirrorFile(ctx, srcPath, dstPath, stats); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "mirror file")
			return err
		}
	}

	return nil
}

func (w *Walker) makeDir(path string, stats *Stats) error {
	w.logger.Printf("creating directory path=%s", path)
	if err := os.Mkdir(path, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	stats.DirectoriesCreated++
	return nil
}

func (w *Walker) mirrorFile(ctx context.Context, srcPath, dstPath string, stats *Stats) error {
	name := filepath.Base(srcPath)

	if domain.IsArchive(name) {
		w.logger.Printf("processing archive file path=%s", srcPath)
		return w.rewriteArchive(ctx, srcPath, dstPath, stats)
	}

	if kind, ok := domain.Classify(name); ok {
		w.logger.Printf("processing image path=%s", srcPath)
		return w.scaleFile(ctx, srcPath, dstPath, kind, stats)
	}

	w.logger.Printf("copying path=%s", srcPath)
	return w.copyFile(srcPath, dstPath, stats)
}

func (w *Walker) rewriteArchive(ctx context.Context, srcPath, dstPath string, stats *Stats) error {
	ctx, span := w.tracer.Start(ctx, "mirror.archive", trace.WithAttributes(attribute.String("archive.path", srcPath)))
	defer span.End()

	res, err := w.archives.Rewrite(ctx, srcPath, dstPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rewrite archive")
		return err
	}

	span.SetAttributes(
		attribute.Int("archive.entries", res.Entries),
		attribute.Int("archive.images", res.Images),
		attribute.Int("archive.skipped", res.Skipped),
	)
	stats.addArchive(res)
	return nil
}

func (w *Walker) scaleFile(ctx context.Context, srcPath, dstPath string, kind domain.Kind, stats *Stats) (err error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read image %s: %w", srcPath, err)
	}
	stats.BytesRead += int64(len(data))

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create image %s: %w", dstPath, err)
	}
	defer func() {
		closeErr := out.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close image %s: %w", dstPath, closeErr)
		}
		if err != nil {
			if rmErr := os.Remove(dstPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				w.logger.Printf("partial image removal failed path=%s err=%v", dstPath, rmErr)
			}
		}
	}()

	outcome, err := w.images.WriteScaled(ctx, srcPath, data, kind, out)
	if err != nil {
		return err
	}
	stats.addImage(outcome)
	return nil
}

func (w *Walker) copyFile(srcPath, dstPath string, stats *Stats) (err error) {
	in, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer in.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", dstPath, err)
	}
	defer func() {
		if closeErr := out.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close %s: %w", dstPath, closeErr)
		}
	}()

	n, err := io.Copy(out, in)
	if err != nil {
		return fmt.Errorf("copy %s: %w", srcPath, err)
	}

	stats.FilesCopied++
	stats.BytesRead += n
	stats.BytesWritten += n
	return nil
}
