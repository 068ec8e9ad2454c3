//go:build !govips || !cgo

package pipeline

func Startup() error {
	return nil
}

func Shutdown() {}

func newPrimaryResampler(opts Options) Resampler {
	return newGiftResampler(opts)
}
