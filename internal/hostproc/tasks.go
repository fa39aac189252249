package hostproc

import (
	"fmt"

	"github.com/prometheus/procfs"

	"github.com/k3s-io/cgroupfs/internal/errkind"
)

// CountActiveTasks counts how many of pids are currently running ("R") or
// in uninterruptible sleep ("D"), the same task states the kernel's own
// load-average sampler counts, for the cgroup loadavg EMA mode.
func CountActiveTasks(procRoot string, pids []int) (int, error) {
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return 0, fmt.Errorf("open procfs: %w", errkind.ErrFatal)
	}

	active := 0
	for _, pid := range pids {
		proc, err := fs.Proc(pid)
		if err != nil {
			continue
		}
		ps, err := proc.Stat()
		if err != nil {
			continue
		}
		if ps.State == "R" || ps.State == "D" {
			active++
		}
	}
	return active, nil
}
