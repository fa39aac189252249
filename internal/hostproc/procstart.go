package hostproc

import (
	"fmt"
	"time"

	"github.com/prometheus/procfs"

	"github.com/k3s-io/cgroupfs/internal/errkind"
)

// clockTicksPerSecond is the kernel's USER_HZ, used to convert
// /proc/<pid>/stat's starttime field (in clock ticks since boot) into a
// wall time. 100 is the value on every architecture this filesystem
// targets; there is no portable way to query it from userspace short of
// sysconf(_SC_CLK_TCK), which cgo would pull in for a single constant.
const clockTicksPerSecond = 100

// EarliestStart scans pids (expected to be every PID in one cgroup's
// cgroup.procs) and returns the wall-clock start time of whichever process
// started first, for the /proc/uptime renderer's "container uptime"
// calculation. Processes that have already exited by the time they're
// stat'd are skipped rather than failing the whole computation.
func EarliestStart(procRoot string, pids []int) (earliest time.Time, found bool, err error) {
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("open procfs: %w", errkind.ErrFatal)
	}
	hostStat, err := fs.Stat()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read /proc/stat: %w", errkind.ErrTransient)
	}
	bootTime := time.Unix(int64(hostStat.BootTime), 0)

	for _, pid := range pids {
		proc, err := fs.Proc(pid)
		if err != nil {
			continue // exited between listing and stat'ing
		}
		ps, err := proc.Stat()
		if err != nil {
			continue
		}
		start := bootTime.Add(time.Duration(ps.Starttime) * time.Second / clockTicksPerSecond)
		if !found || start.Before(earliest) {
			earliest = start
			found = true
		}
	}
	return earliest, found, nil
}
