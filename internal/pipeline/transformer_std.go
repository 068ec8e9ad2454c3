package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/gift"
	xdraw "golang.org/x/image/draw"
)

// lanczosSupport is the Lanczos-3 kernel radius in source pixels.
const lanczosSupport = 3

type giftResampler struct {
	sigma  float32
	amount float32
}

func newGiftResampler(opts Options) giftResampler {
	opts = opts.withDefaults()
	return giftResampler{sigma: opts.UnsharpSigma, amount: opts.UnsharpAmount}
}

func (giftResampler) Name() string {
	return "lanczos_unsharp"
}

func (g giftResampler) Resample(ctx context.Context, src image.Image, width, height int) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	bounds := src.Bounds()
	if bounds.Dx() < lanczosSupport || bounds.Dy() < lanczosSupport {
		return nil, fmt.Errorf("%w: %dx%d", ErrSourceTooSmall, bounds.Dx(), bounds.Dy())
	}

	filter := gift.New(
		gift.Resize(width, height, gift.LanczosResampling),
		gift.UnsharpMask(g.sigma, g.amount, 0),
	)
	dst := image.NewNRGBA(filter.Bounds(bounds))
	filter.Draw(dst, src)
	return dst, nil
}

// bilinearResampler handles every non-empty raster, including 1x1 sources.
type bilinearResampler struct{}

func (bilinearResampler) Name() string {
	return "bilinear"
}

func (bilinearResampler) Resample(ctx context.Context, src image.Image, width, height int) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if src.Bounds().Empty() || width <= 0 || height <= 0 {
		return nil, ErrEmptyImage
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst, nil
}
