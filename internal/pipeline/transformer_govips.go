//go:build govips && cgo

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/davidbyttow/govips/v2/vips"
)

type govipsResampler struct{}

func (govipsResampler) Name() string {
	return "vips_lanczos3"
}

func (govipsResampler) Resample(ctx context.Context, src image.Image, width, height int) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrEmptyImage
	}

	var staged bytes.Buffer
	if err := png.Encode(&staged, src); err != nil {
		return nil, fmt.Errorf("stage raster for vips: %w", err)
	}

	img, err := vips.NewImageFromBuffer(staged.Bytes())
	if err != nil {
		return nil, fmt.Errorf("load raster into vips: %w", err)
	}
	defer img.Close()

	hscale := float64(width) / float64(bounds.Dx())
	vscale := float64(height) / float64(bounds.Dy())
	if err := img.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3); err != nil {
		return nil, fmt.Errorf("vips resize: %w", err)
	}
	if img.Width() != width || img.Height() != height {
		return nil, fmt.Errorf("vips resize produced %dx%d, want %dx%d", img.Width(), img.Height(), width, height)
	}

	data, _, err := img.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("export vips raster: %w", err)
	}

	out, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read back vips raster: %w", err)
	}
	return out, nil
}
