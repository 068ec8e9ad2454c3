package pipeline

import (
	"context"
	"errors"
	"image"
)

var (
	ErrDecode         = errors.New("decode source image")
	ErrEncode         = errors.New("encode scaled image")
	ErrSourceTooSmall = errors.New("source image smaller than resampling kernel")
	ErrEmptyImage     = errors.New("source image has no pixels")
)

// Resampler produces a raster of exactly width x height from src.
type Resampler interface {
	Name() string
	Resample(ctx context.Context, src image.Image, width, height int) (image.Image, error)
}

type Options struct {
	UnsharpSigma  float32
	UnsharpAmount float32
}

func (o Options) withDefaults() Options {
	if o.UnsharpSigma <= 0 {
		o.UnsharpSigma = 0.8
	}
	if o.UnsharpAmount <= 0 {
		o.UnsharpAmount = 0.6
	}
	return o
}
