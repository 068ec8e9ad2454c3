package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/enlarge/internal/domain"
)

// ScaleFactor is fixed; every image is enlarged to twice its width and height.
const ScaleFactor = 2

type Logger interface {
	Printf(format string, args ...any)
}

// Scaled is a resampled raster that has not been encoded yet.
type Scaled struct {
	Image        image.Image
	SourceWidth  int
	SourceHeight int
	Width        int
	Height       int
	Resampler    string
	Fallback     bool

	// Palette is the source palette when the source was paletted.
	Palette color.Palette
}

// Outcome describes what WriteScaled put into its destination.
type Outcome struct {
	Passthrough  bool
	Fallback     bool
	Resampler    string
	SourceWidth  int
	SourceHeight int
	Width        int
	Height       int
	BytesWritten int64
}

type Rescaler struct {
	logger   Logger
	primary  Resampler
	fallback Resampler
}

func NewRescaler(logger Logger, opts Options) *Rescaler {
	return &Rescaler{
		logger:   logger,
		primary:  newPrimaryResampler(opts),
		fallback: bilinearResampler{},
	}
}

// Scale decodes data and resamples it to ScaleFactor times its size. Nothing
// has been written anywhere when Scale returns, so every error it reports is
// recoverable by the caller.
func (r *Rescaler) Scale(ctx context.Context, data []byte) (Scaled, error) {
	select {
	case <-ctx.Done():
		return Scaled{}, ctx.Err()
	default:
	}

	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return Scaled{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := src.Bounds()
	width := bounds.Dx() * ScaleFactor
	height := bounds.Dy() * ScaleFactor

	out := Scaled{
		SourceWidth:  bounds.Dx(),
		SourceHeight: bounds.Dy(),
		Width:        width,
		Height:       height,
	}
	if paletted, ok := src.(*image.Paletted); ok {
		out.Palette = paletted.Palette
	}

	img, primaryErr := r.primary.Resample(ctx, src, width, height)
	if primaryErr == nil {
		out.Image = img
		out.Resampler = r.primary.Name()
		return out, nil
	}
	if ctx.Err() != nil {
		return Scaled{}, ctx.Err()
	}

	img, err = r.fallback.Resample(ctx, src, width, height)
	if err != nil {
		return Scaled{}, fmt.Errorf("%s failed (%v), %s failed: %w", r.primary.Name(), primaryErr, r.fallback.Name(), err)
	}
	out.Image = img
	out.Resampler = r.fallback.Name()
	out.Fallback = true
	return out, nil
}

// Rescale returns data enlarged and re-encoded as kind.
func (r *Rescaler) Rescale(ctx context.Context, data []byte, kind domain.Kind) ([]byte, error) {
	scaled, err := r.Scale(ctx, data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, scaled.forEncoding(kind), kind); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteScaled enlarges data into w. When the image cannot be scaled the
// original bytes are written instead and the failure is only logged. Once
// encoding into w has started any failure is returned, since w may already
// hold part of the image.
func (r *Rescaler) WriteScaled(ctx context.Context, label string, data []byte, kind domain.Kind, w io.Writer) (Outcome, error) {
	r.logger.Printf("scaling image name=%s", label)

	scaled, err := r.Scale(ctx, data)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Outcome{}, err
		}
		r.logger.Printf("unable to scale name=%s err=%v", label, err)

		n, werr := w.Write(data)
		if werr != nil {
			return Outcome{}, fmt.Errorf("pass through image %s: %w", label, werr)
		}
		return Outcome{Passthrough: true, BytesWritten: int64(n)}, nil
	}

	cw := &countingWriter{w: w}
	if err := Encode(cw, scaled.forEncoding(kind), kind); err != nil {
		return Outcome{}, fmt.Errorf("failed to scale image %s: %w", label, err)
	}

	if scaled.Fallback {
		r.logger.Printf("scaled image name=%s with fallback resampler=%s", label, scaled.Resampler)
	}

	return Outcome{
		Fallback:     scaled.Fallback,
		Resampler:    scaled.Resampler,
		SourceWidth:  scaled.SourceWidth,
		SourceHeight: scaled.SourceHeight,
		Width:        scaled.Width,
		Height:       scaled.Height,
		BytesWritten: cw.n,
	}, nil
}

// Encode serializes img with the encoding identifier bound to kind.
func Encode(w io.Writer, img image.Image, kind domain.Kind) error {
	if err := imaging.Encode(w, img, kind.Format()); err != nil {
		return fmt.Errorf("%w as %s: %v", ErrEncode, kind, err)
	}
	return nil
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
