package procview

import (
	"fmt"
	"time"

	"github.com/k3s-io/cgroupfs/internal/cgparse"
	"github.com/k3s-io/cgroupfs/internal/cgroup"
	"github.com/k3s-io/cgroupfs/internal/hostproc"
)

// RenderUptime synthesizes /proc/uptime. The first field is the wall-clock
// age of the container, taken as the earliest start time among the PIDs
// named by cgroupProcs; the second is the kernel's cumulative-idle
// convention, approximated as uptime times the virtual CPU count (see
// spec.md 4.4).
func RenderUptime(now time.Time, cgroupProcs []int, cs cgroup.ConstraintSet, hostOnline cgparse.CPUSet, procRoot string) ([]byte, error) {
	earliest, found, err := hostproc.EarliestStart(procRoot, cgroupProcs)
	if err != nil {
		return nil, err
	}

	uptime := 0.0
	if found {
		uptime = now.Sub(earliest).Seconds()
		if uptime < 0 {
			uptime = 0
		}
	}

	vcpus := len(virtualCPUs(cs, hostOnline))
	idle := uptime * float64(vcpus)

	return []byte(fmt.Sprintf("%.2f %.2f\n", uptime, idle)), nil
}
