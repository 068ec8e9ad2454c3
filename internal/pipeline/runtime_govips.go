//go:build govips && cgo

package pipeline

import (
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

func Startup() error {
	startupOnce.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelWarning)
		vips.Startup(&vips.Config{
			ConcurrencyLevel: 1,
			MaxCacheFiles:    0,
			MaxCacheMem:      64 * 1024 * 1024,
			MaxCacheSize:     100,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

func newPrimaryResampler(Options) Resampler {
	return govipsResampler{}
}
