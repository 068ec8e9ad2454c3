// Package archive rewrites ZIP-compatible archives (.zip, .jar) entry by
// entry, enlarging image entries and copying everything else verbatim.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dunamismax/enlarge/internal/domain"
	"github.com/dunamismax/enlarge/internal/pipeline"
)

var ErrDuplicateEntry = errors.New("duplicate archive entry")

type Logger interface {
	Printf(format string, args ...any)
}

type ImageWriter interface {
	WriteScaled(ctx context.Context, label string, data []byte, kind domain.Kind, w io.Writer) (pipeline.Outcome, error)
}

// Result summarises one rewritten archive.
type Result struct {
	Entries        int
	Images         int
	Passthrough    int
	Fallbacks      int
	Skipped        int
	PixelsProduced int64
	BytesRead      int64
	BytesWritten   int64
}

type Rewriter struct {
	logger Logger
	images ImageWriter
}

func NewRewriter(logger Logger, images ImageWriter) *Rewriter {
	return &Rewriter{logger: logger, images: images}
}

// Rewrite streams every entry of srcPath into a new archive at dstPath in
// source order. Duplicate entry names are skipped; any other failure aborts
// the rewrite and removes the partial archive at dstPath.
func (r *Rewriter) Rewrite(ctx context.Context, srcPath, dstPath string) (res Result, err error) {
	// Entry names are only copied, never extracted, so non-local names are kept.
	zr, err := zip.OpenReader(srcPath)
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && zr != nil) {
		return Result{}, fmt.Errorf("open archive %s: %w", srcPath, err)
	}
	defer zr.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return Result{}, fmt.Errorf("create archive %s: %w", dstPath, err)
	}
	counter := &countingWriter{w: out}
	zw := zip.NewWriter(counter)

	defer func() {
		closeErr := zw.Close()
		if fileErr := out.Close(); closeErr == nil {
			closeErr = fileErr
		}
		if err == nil && closeErr != nil {
			err = fmt.Errorf("finish archive %s: %w", dstPath, closeErr)
		}
		if err != nil {
			if rmErr := os.Remove(dstPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				r.logger.Printf("partial archive removal failed path=%s err=%v", dstPath, rmErr)
			}
			return
		}
		res.BytesWritten = counter.n
	}()

	if zr.Comment != "" {
		if err := zw.SetComment(zr.Comment); err != nil {
			return Result{}, fmt.Errorf("copy archive comment: %w", err)
		}
	}

	archiveName := filepath.Base(srcPath)
	entries := newEntryWriter(zw)
	for _, f := range zr.File {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		r.logger.Printf("processing archive entry archive=%s entry=%s", archiveName, f.Name)
		if err := r.rewriteEntry(ctx, archiveName, f, entries, &res); err != nil {
			if errors.Is(err, ErrDuplicateEntry) {
				r.logger.Printf("skipping duplicate archive entry archive=%s entry=%s", archiveName, f.Name)
				res.Skipped++
				continue
			}
			return Result{}, fmt.Errorf("archive %s entry %s: %w", archiveName, f.Name, err)
		}
		res.Entries++
	}

	return res, nil
}

func (r *Rewriter) rewriteEntry(ctx context.Context, archiveName string, f *zip.File, entries *entryWriter, res *Result) error {
	w, err := entries.open(f)
	if err != nil {
		return err
	}
	if isDirEntry(f.Name) {
		return nil
	}

	data, err := readEntry(f)
	if err != nil {
		return err
	}
	res.BytesRead += int64(len(data))

	kind, ok := domain.Classify(f.Name)
	if !ok {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("copy entry: %w", err)
		}
		return nil
	}

	outcome, err := r.images.WriteScaled(ctx, archiveName+":"+f.Name, data, kind, w)
	if err != nil {
		return err
	}
	res.Images++
	switch {
	case outcome.Passthrough:
		res.Passthrough++
	case outcome.Fallback:
		res.Fallbacks++
	}
	res.PixelsProduced += int64(outcome.Width) * int64(outcome.Height)
	return nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}
	return data, nil
}

// entryWriter opens destination entries and refuses names it has already
// written, which archive/zip itself does not check.
type entryWriter struct {
	zw      *zip.Writer
	written map[string]struct{}
}

func newEntryWriter(zw *zip.Writer) *entryWriter {
	return &entryWriter{zw: zw, written: make(map[string]struct{})}
}

func (e *entryWriter) open(src *zip.File) (io.Writer, error) {
	if _, dup := e.written[src.Name]; dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, src.Name)
	}

	method := src.Method
	if method != zip.Store {
		method = zip.Deflate
	}

	w, err := e.zw.CreateHeader(&zip.FileHeader{
		Name:           src.Name,
		Comment:        src.Comment,
		Method:         method,
		Modified:       src.Modified,
		CreatorVersion: src.CreatorVersion,
		ExternalAttrs:  src.ExternalAttrs,
	})
	if err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}
	e.written[src.Name] = struct{}{}
	return w, nil
}

func isDirEntry(name string) bool {
	return strings.HasSuffix(name, "/")
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
