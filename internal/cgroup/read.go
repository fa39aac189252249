package cgroup

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/k3s-io/cgroupfs/internal/errkind"
)

// maxControllerFileSize bounds the short, newline-terminated UTF-8 buffers
// controller files are defined to contain (spec.md 4.1).
const maxControllerFileSize = 4096

// ReadControllerFile reads a controller file at path and trims trailing
// whitespace. A missing file is reported as errkind.ErrNotFound so callers
// can substitute the unlimited/inherit value instead of failing the whole
// operation.
func ReadControllerFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s: %w", path, errkind.ErrNotFound)
		}
		if os.IsPermission(err) {
			return "", fmt.Errorf("%s: %w", path, errkind.ErrPermission)
		}
		if errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN) {
			return "", fmt.Errorf("%s: %w", path, errkind.ErrTransient)
		}
		return "", fmt.Errorf("%s: %w", path, errkind.ErrInvalid)
	}
	defer f.Close()

	buf := make([]byte, maxControllerFileSize)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return "", fmt.Errorf("%s: %w", path, errkind.ErrInvalid)
	}
	return strings.TrimRight(string(buf[:n]), " \t\r\n"), nil
}

// WriteControllerFile writes a single value to a controller file, the only
// write path this layer exposes: controllers accept writes on their own
// terms, nothing is buffered or retried beyond one bounded attempt.
func WriteControllerFile(path, value string) error {
	err := os.WriteFile(path, []byte(value), 0)
	if err == nil {
		return nil
	}
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%s: %w", path, errkind.ErrNotFound)
	case os.IsPermission(err):
		return fmt.Errorf("%s: %w", path, errkind.ErrPermission)
	case errors.Is(err, syscall.EBUSY):
		return fmt.Errorf("%s: %w", path, errkind.ErrBusy)
	default:
		return fmt.Errorf("%s: %w", path, errkind.ErrInvalid)
	}
}
