// Package preflight validates the base and output directories before a run
// touches anything.
package preflight

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrMissingArgument  = errors.New("missing required argument")
	ErrSourceUnreadable = errors.New("unable to read from base directory")
	ErrSourceEmpty      = errors.New("the base directory is empty")
	ErrOutputUnwritable = errors.New("unable to write to output directory")
	ErrOutputNotEmpty   = errors.New("the output directory is not empty")
	ErrOutputInSource   = errors.New("the output directory is inside the base directory")
)

// Check returns the first violated precondition, wrapped with the offending path.
func Check(baseDir, outputDir string) error {
	if strings.TrimSpace(baseDir) == "" {
		return fmt.Errorf("%w: baseDir", ErrMissingArgument)
	}
	if strings.TrimSpace(outputDir) == "" {
		return fmt.Errorf("%w: outputDir", ErrMissingArgument)
	}

	if err := checkDir(baseDir, false); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, baseDir, err)
	}
	if err := checkDir(outputDir, true); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOutputUnwritable, outputDir, err)
	}

	empty, err := isEmpty(baseDir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, baseDir, err)
	}
	if empty {
		return fmt.Errorf("%w: %s", ErrSourceEmpty, baseDir)
	}

	empty, err = isEmpty(outputDir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOutputUnwritable, outputDir, err)
	}
	if !empty {
		return fmt.Errorf("%w: %s", ErrOutputNotEmpty, outputDir)
	}

	inside, err := within(baseDir, outputDir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOutputUnwritable, outputDir, err)
	}
	if inside {
		return fmt.Errorf("%w: %s is under %s", ErrOutputInSource, outputDir, baseDir)
	}

	return nil
}

// within reports whether dir resolves to root or a directory below it.
// Symlinks are resolved since the walk follows them.
func within(root, dir string) (bool, error) {
	resolvedRoot, err := resolve(root)
	if err != nil {
		return false, err
	}
	resolvedDir, err := resolve(dir)
	if err != nil {
		return false, err
	}

	rel, err := filepath.Rel(resolvedRoot, resolvedDir)
	if err != nil {
		return false, nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false, nil
	}
	return true, nil
}

func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func checkDir(path string, writable bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("not a directory")
	}
	if err := canRead(path); err != nil {
		return fmt.Errorf("not readable: %w", err)
	}
	if writable {
		if err := canWrite(path); err != nil {
			return fmt.Errorf("not writable: %w", err)
		}
	}
	return nil
}

func isEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}
