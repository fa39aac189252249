package hostproc

import (
	"fmt"
	"os"
	"strings"

	"github.com/k3s-io/cgroupfs/internal/errkind"
)

// ReadLines reads path and splits it into lines without their terminators.
// Several virtualized files (meminfo, cpuinfo, diskstats, swaps) must be
// reproduced byte-compatibly with the host, which means rewriting specific
// fields in place on top of the host's own text rather than re-serializing
// from a parsed struct; ReadLines is the starting point for all of them.
func ReadLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, errkind.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", path, errkind.ErrFatal)
	}
	text := strings.TrimSuffix(string(b), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// ReadRaw reads path whole, for pure passthrough files (diskstats, swaps
// when per-cgroup statistics aren't available).
func ReadRaw(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, errkind.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", path, errkind.ErrFatal)
	}
	return b, nil
}
