package procview

import (
	"github.com/k3s-io/cgroupfs/internal/cgparse"
	"github.com/k3s-io/cgroupfs/internal/cgroup"
)

// RenderCPUOnline synthesizes /sys/devices/system/cpu/online. The virtual
// CPUs visible inside the cgroup are always renumbered starting at 0, so
// the result is "0-(N-1)" where N is the size of cpuset∩online, or empty
// if the intersection is empty.
func RenderCPUOnline(cs cgroup.ConstraintSet, hostOnline cgparse.CPUSet) []byte {
	h := virtualCPUs(cs, hostOnline)
	if len(h) == 0 {
		return []byte("\n")
	}
	renumbered := make(cgparse.CPUSet, len(h))
	for i := range h {
		renumbered[i] = i
	}
	return []byte(renumbered.Canonicalize() + "\n")
}
