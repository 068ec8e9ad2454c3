package domain

import (
	"strings"

	"github.com/disintegration/imaging"
)

// Kind is a raster format recognised by file name suffix.
type Kind int

const (
	KindPNG Kind = iota + 1
	KindGIF
)

// kinds is ordered; the first matching suffix wins.
var kinds = []Kind{KindPNG, KindGIF}

var archiveSuffixes = []string{".zip", ".jar"}

func (k Kind) String() string {
	switch k {
	case KindPNG:
		return "PNG"
	case KindGIF:
		return "GIF"
	default:
		return "unknown"
	}
}

func (k Kind) Suffix() string {
	switch k {
	case KindPNG:
		return ".png"
	case KindGIF:
		return ".gif"
	default:
		return ""
	}
}

// Format is the encoding identifier used when re-serializing a raster of this kind.
func (k Kind) Format() imaging.Format {
	switch k {
	case KindGIF:
		return imaging.GIF
	default:
		return imaging.PNG
	}
}

func (k Kind) ContentType() string {
	switch k {
	case KindGIF:
		return "image/gif"
	default:
		return "image/png"
	}
}

// Classify maps a file or archive entry name to its image kind. Only the name
// is consulted; contents are never sniffed.
func Classify(name string) (Kind, bool) {
	lower := strings.ToLower(name)
	for _, k := range kinds {
		if strings.HasSuffix(lower, k.Suffix()) {
			return k, true
		}
	}
	return 0, false
}

func IsArchive(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
