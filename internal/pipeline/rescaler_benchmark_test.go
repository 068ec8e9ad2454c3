package pipeline

import (
	"bytes"
	"context"
	"io"
	"log"
	"testing"

	"github.com/dunamismax/enlarge/internal/domain"
)

func BenchmarkWriteScaledIcon(b *testing.B) {
	source := buildTestPNG(b, 16, 16)
	r := NewRescaler(log.New(io.Discard, "", 0), Options{})

	var dst bytes.Buffer
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dst.Reset()
		if _, err := r.WriteScaled(context.Background(), "icon.png", source, domain.KindPNG, &dst); err != nil {
			b.Fatalf("write scaled: %v", err)
		}
	}
}

func BenchmarkScaleLarge(b *testing.B) {
	source := buildTestPNG(b, 512, 512)
	r := NewRescaler(log.New(io.Discard, "", 0), Options{})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Scale(context.Background(), source); err != nil {
			b.Fatalf("scale: %v", err)
		}
	}
}
