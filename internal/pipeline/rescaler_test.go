package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/png"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/dunamismax/enlarge/internal/domain"
)

func TestRescalePNGDoublesDimensions(t *testing.T) {
	r := NewRescaler(log.New(io.Discard, "", 0), Options{})

	out, err := r.Rescale(context.Background(), buildTestPNG(t, 24, 12), domain.KindPNG)
	if err != nil {
		t.Fatalf("rescale: %v", err)
	}

	cfg, format := decodeConfig(t, out)
	if format != "png" {
		t.Fatalf("expected png output, got %s", format)
	}
	if cfg.Width != 48 || cfg.Height != 24 {
		t.Fatalf("expected 48x24, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestRescaleGIFKeepsKind(t *testing.T) {
	r := NewRescaler(log.New(io.Discard, "", 0), Options{})

	out, err := r.Rescale(context.Background(), buildTestGIF(t, 16, 10), domain.KindGIF)
	if err != nil {
		t.Fatalf("rescale: %v", err)
	}

	cfg, format := decodeConfig(t, out)
	if format != "gif" {
		t.Fatalf("expected gif output, got %s", format)
	}
	if cfg.Width != 32 || cfg.Height != 20 {
		t.Fatalf("expected 32x20, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestRescaleGIFKeepsPaletteAndTransparency(t *testing.T) {
	red := color.RGBA{R: 200, G: 30, B: 30, A: 255}
	src := image.NewPaletted(image.Rect(0, 0, 16, 16), color.Palette{color.Transparent, red})
	for y := 4; y < 12; y++ {
		for x := 4; x < 12; x++ {
			src.SetColorIndex(x, y, 1)
		}
	}
	var buf bytes.Buffer
	if err := gif.Encode(&buf, src, nil); err != nil {
		t.Fatalf("encode source gif: %v", err)
	}

	r := NewRescaler(log.New(io.Discard, "", 0), Options{})
	out, err := r.Rescale(context.Background(), buf.Bytes(), domain.KindGIF)
	if err != nil {
		t.Fatalf("rescale: %v", err)
	}

	img, err := gif.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	paletted, ok := img.(*image.Paletted)
	if !ok {
		t.Fatalf("expected paletted output, got %T", img)
	}
	if paletted.Bounds().Dx() != 32 || paletted.Bounds().Dy() != 32 {
		t.Fatalf("expected 32x32, got %v", paletted.Bounds())
	}
	if len(paletted.Palette) != 2 {
		t.Fatalf("expected the 2 colour source palette, got %d entries", len(paletted.Palette))
	}

	for _, pt := range []image.Point{image.Pt(0, 0), image.Pt(31, 0), image.Pt(0, 31), image.Pt(31, 31)} {
		if _, _, _, a := paletted.At(pt.X, pt.Y).RGBA(); a != 0 {
			t.Fatalf("expected transparent pixel at %v, got alpha %d", pt, a>>8)
		}
	}
	if got := color.RGBAModel.Convert(paletted.At(16, 16)).(color.RGBA); got != red {
		t.Fatalf("expected centre colour %v, got %v", red, got)
	}
}

func TestToPalettedMapsByOpacity(t *testing.T) {
	pal := color.Palette{color.RGBA{R: 0, G: 0, B: 255, A: 255}, color.Transparent, color.RGBA{R: 255, G: 255, B: 255, A: 255}}
	src := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 10, B: 240, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 250, G: 250, B: 250, A: 200})
	src.SetNRGBA(2, 0, color.NRGBA{R: 250, G: 250, B: 250, A: 100})
	src.SetNRGBA(3, 0, color.NRGBA{})

	dst := toPaletted(src, pal)

	want := []uint8{0, 2, 1, 1}
	for x, idx := range want {
		if got := dst.ColorIndexAt(x, 0); got != idx {
			t.Fatalf("pixel %d: expected index %d, got %d", x, idx, got)
		}
	}
}

func TestScaleFallsBackForTinySources(t *testing.T) {
	r := NewRescaler(log.New(io.Discard, "", 0), Options{})
	r.primary = newGiftResampler(Options{})

	sizes := [][2]int{{1, 1}, {2, 5}, {7, 1}}
	for _, size := range sizes {
		t.Run(fmt.Sprintf("%dx%d", size[0], size[1]), func(t *testing.T) {
			scaled, err := r.Scale(context.Background(), buildTestPNG(t, size[0], size[1]))
			if err != nil {
				t.Fatalf("scale: %v", err)
			}
			if !scaled.Fallback {
				t.Fatal("expected fallback resampler to be used")
			}
			if scaled.Resampler != "bilinear" {
				t.Fatalf("expected bilinear resampler, got %s", scaled.Resampler)
			}
			b := scaled.Image.Bounds()
			if b.Dx() != size[0]*2 || b.Dy() != size[1]*2 {
				t.Fatalf("expected %dx%d, got %dx%d", size[0]*2, size[1]*2, b.Dx(), b.Dy())
			}
		})
	}
}

func TestScaleUsesPrimaryForRegularSources(t *testing.T) {
	r := NewRescaler(log.New(io.Discard, "", 0), Options{})

	scaled, err := r.Scale(context.Background(), buildTestPNG(t, 16, 16))
	if err != nil {
		t.Fatalf("scale: %v", err)
	}
	if scaled.Fallback {
		t.Fatalf("expected primary resampler, got %s", scaled.Resampler)
	}
	if scaled.Width != 32 || scaled.Height != 32 {
		t.Fatalf("expected 32x32, got %dx%d", scaled.Width, scaled.Height)
	}
}

func TestGiftResamplerRejectsTinySource(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	_, err := newGiftResampler(Options{}).Resample(context.Background(), src, 4, 4)
	if !errors.Is(err, ErrSourceTooSmall) {
		t.Fatalf("expected ErrSourceTooSmall, got %v", err)
	}
}

func TestBilinearResamplerHandlesSinglePixel(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 6, 6))
	src.Set(5, 5, color.RGBA{R: 200, A: 255})

	out, err := bilinearResampler{}.Resample(context.Background(), src, 2, 2)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if got := out.Bounds(); got.Dx() != 2 || got.Dy() != 2 {
		t.Fatalf("expected 2x2, got %dx%d", got.Dx(), got.Dy())
	}
	r, _, _, a := out.At(1, 1).RGBA()
	if r>>8 != 200 || a>>8 != 255 {
		t.Fatalf("expected source colour to be kept, got r=%d a=%d", r>>8, a>>8)
	}
}

func TestRescaleRejectsUndecodableInput(t *testing.T) {
	r := NewRescaler(log.New(io.Discard, "", 0), Options{})

	_, err := r.Rescale(context.Background(), []byte("not an image"), domain.KindPNG)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestWriteScaledPassesThroughUndecodableInput(t *testing.T) {
	var logs bytes.Buffer
	r := NewRescaler(log.New(&logs, "", 0), Options{})
	original := []byte("\x89PNG but truncated")

	var dst bytes.Buffer
	outcome, err := r.WriteScaled(context.Background(), "broken.png", original, domain.KindPNG, &dst)
	if err != nil {
		t.Fatalf("expected passthrough without error, got %v", err)
	}
	if !outcome.Passthrough {
		t.Fatal("expected passthrough outcome")
	}
	if !bytes.Equal(dst.Bytes(), original) {
		t.Fatal("expected original bytes to be written unchanged")
	}
	if outcome.BytesWritten != int64(len(original)) {
		t.Fatalf("expected %d bytes written, got %d", len(original), outcome.BytesWritten)
	}
	if !strings.Contains(logs.String(), "unable to scale name=broken.png") {
		t.Fatalf("expected scale failure to be logged, got %q", logs.String())
	}
}

func TestWriteScaledEncodeFailureIsFatal(t *testing.T) {
	r := NewRescaler(log.New(io.Discard, "", 0), Options{})

	_, err := r.WriteScaled(context.Background(), "icon.png", buildTestPNG(t, 8, 8), domain.KindPNG, failingWriter{})
	if !errors.Is(err, ErrEncode) {
		t.Fatalf("expected ErrEncode, got %v", err)
	}
}

func TestWriteScaledReportsDimensions(t *testing.T) {
	r := NewRescaler(log.New(io.Discard, "", 0), Options{})

	var dst bytes.Buffer
	outcome, err := r.WriteScaled(context.Background(), "icon.png", buildTestPNG(t, 10, 6), domain.KindPNG, &dst)
	if err != nil {
		t.Fatalf("write scaled: %v", err)
	}
	if outcome.Passthrough {
		t.Fatal("expected scaled outcome")
	}
	if outcome.Width != 20 || outcome.Height != 12 {
		t.Fatalf("expected 20x12, got %dx%d", outcome.Width, outcome.Height)
	}
	if outcome.BytesWritten != int64(dst.Len()) {
		t.Fatalf("expected %d bytes written, got %d", dst.Len(), outcome.BytesWritten)
	}
}

func TestScaleHonoursCancellation(t *testing.T) {
	r := NewRescaler(log.New(io.Discard, "", 0), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var dst bytes.Buffer
	_, err := r.WriteScaled(ctx, "icon.png", buildTestPNG(t, 8, 8), domain.KindPNG, &dst)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if dst.Len() != 0 {
		t.Fatal("expected nothing to be written after cancellation")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func buildTestPNG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

func buildTestGIF(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewPaletted(image.Rect(0, 0, w, h), palette.Plan9)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetColorIndex(x, y, uint8((x+y)%len(palette.Plan9)))
		}
	}

	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode source gif: %v", err)
	}
	return buf.Bytes()
}

func decodeConfig(t *testing.T, data []byte) (image.Config, string) {
	t.Helper()

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output config: %v", err)
	}
	return cfg, format
}
