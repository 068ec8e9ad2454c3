package pipeline

import (
	"image"
	"image/color"

	"github.com/dunamismax/enlarge/internal/domain"
)

// forEncoding returns the raster to hand to Encode. A GIF whose source was
// paletted keeps that palette, transparent entry included.
func (s Scaled) forEncoding(kind domain.Kind) image.Image {
	if kind != domain.KindGIF || len(s.Palette) == 0 {
		return s.Image
	}
	return toPaletted(s.Image, s.Palette)
}

// toPaletted maps img onto pal. Pixels below half opacity take the first
// fully transparent entry of pal; the rest take the nearest opaque entry.
func toPaletted(img image.Image, pal color.Palette) *image.Paletted {
	transparent := -1
	opaque := make(color.Palette, 0, len(pal))
	opaqueIndex := make([]uint8, 0, len(pal))
	for i, c := range pal {
		if _, _, _, a := c.RGBA(); a == 0 {
			if transparent < 0 {
				transparent = i
			}
			continue
		}
		opaque = append(opaque, c)
		opaqueIndex = append(opaqueIndex, uint8(i))
	}

	bounds := img.Bounds()
	dst := image.NewPaletted(bounds, pal)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if transparent >= 0 && (c.A < 0x80 || len(opaque) == 0) {
				dst.SetColorIndex(x, y, uint8(transparent))
				continue
			}
			c.A = 0xff
			dst.SetColorIndex(x, y, opaqueIndex[opaque.Index(c)])
		}
	}
	return dst
}
