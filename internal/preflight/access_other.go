//go:build !unix

package preflight

import "os"

func canRead(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

func canWrite(path string) error {
	f, err := os.CreateTemp(path, ".enlarge-access-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
