// Package procview synthesizes the container-aware contents of every
// virtualized /proc and /sys file (C4): each renderer is a pure function of
// host state, the caller's resolved ConstraintSet, and (for /proc/stat) the
// CPU accounting cache.
package procview

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/k3s-io/cgroupfs/internal/cgparse"
	"github.com/k3s-io/cgroupfs/internal/cgroup"
	"github.com/k3s-io/cgroupfs/internal/cpuacct"
)

var log = logrus.WithField("component", "procview")

// Context carries everything a renderer needs to synthesize one file for
// one caller. ProcRoot defaults to "/proc" in production and is overridden
// in tests.
type Context struct {
	Hierarchy  *cgroup.Hierarchy
	Cache      *cpuacct.Cache
	PID        int
	ProcRoot   string
	LoadAvgEMA bool
}

func (c Context) procRoot() string {
	if c.ProcRoot == "" {
		return "/proc"
	}
	return c.ProcRoot
}

// virtualCPUs computes H: the cpuset intersected with the host's online set,
// in ascending order. An empty cpuset (controller absent, or cpuset.cpus
// unset) means "inherit host" per the ConstraintSet invariant.
func virtualCPUs(cs cgroup.ConstraintSet, hostOnline cgparse.CPUSet) cgparse.CPUSet {
	sorted := append(cgparse.CPUSet(nil), hostOnline...)
	sort.Ints(sorted)
	if len(cs.CPUSet) == 0 {
		return sorted
	}
	return cgparse.Intersect(cs.CPUSet, sorted)
}
