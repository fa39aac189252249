package cgroup

import (
	"path/filepath"
	"strings"

	"github.com/k3s-io/cgroupfs/internal/cgparse"
	"github.com/k3s-io/cgroupfs/internal/errkind"
)

// ConstraintSet is the resolved set of resource limits governing a cgroup,
// derived fresh for each (CgroupPath, view). Any controller file that is
// missing or whose controller is absent contributes the unlimited/inherit
// value; ConstraintSet construction never fails.
type ConstraintSet struct {
	CPUSet         cgparse.CPUSet
	CPUQuotaUs     int64 // cgparse.Unlimited if unbounded
	CPUPeriodUs    int64
	CPUShares      int64
	MemLimitBytes  int64
	MemSoftLimit   int64
	MemSwLimit     int64
	PidsMax        int64
	MemUsageBytes  int64
	MemSwapUsage   int64
}

// BuildConstraintSet resolves every controller relevant to the proc-view
// synthesizers for pid, degrading any absent controller to the
// unlimited/inherit defaults instead of failing.
func BuildConstraintSet(h *Hierarchy, pid int) ConstraintSet {
	cs := ConstraintSet{
		CPUQuotaUs:    cgparse.Unlimited,
		CPUPeriodUs:   100000,
		CPUShares:     1024,
		MemLimitBytes: cgparse.Unlimited,
		MemSoftLimit:  cgparse.Unlimited,
		MemSwLimit:    cgparse.Unlimited,
		PidsMax:       cgparse.Unlimited,
	}

	if p, err := ResolvePID(h, pid, "cpuset"); err == nil {
		if s, err := readCPUSet(p); err == nil {
			cs.CPUSet = s
		}
	}

	if p, err := ResolvePID(h, pid, "cpu"); err == nil {
		readCPUControls(p, &cs)
	}

	if p, err := ResolvePID(h, pid, "memory"); err == nil {
		readMemoryControls(p, &cs)
	}

	if p, err := ResolvePID(h, pid, "pids"); err == nil {
		readPidsControls(p, &cs)
	}

	return cs
}

func readCPUSet(p CgroupPath) (cgparse.CPUSet, error) {
	name := "cpuset.cpus"
	if p.Controller.Version == V2 {
		name = "cpuset.cpus.effective"
	}
	s, err := ReadControllerFile(filepath.Join(p.Abs(), name))
	if err != nil {
		if errkind.Classify(err) == errkind.NotFound && p.Controller.Version == V2 {
			s, err = ReadControllerFile(filepath.Join(p.Abs(), "cpuset.cpus"))
		}
		if err != nil {
			return nil, err
		}
	}
	return cgparse.ParseCPUSet(s)
}

func readCPUControls(p CgroupPath, cs *ConstraintSet) {
	if p.Controller.Version == V2 {
		if s, err := ReadControllerFile(filepath.Join(p.Abs(), "cpu.max")); err == nil {
			fields := strings.Fields(s)
			if len(fields) > 0 {
				if q, err := cgparse.ParseQuantity(fields[0]); err == nil {
					cs.CPUQuotaUs = q
				}
			}
			if len(fields) > 1 {
				if pr, err := cgparse.ParseQuantity(fields[1]); err == nil && pr != cgparse.Unlimited {
					cs.CPUPeriodUs = pr
				}
			}
		}
		if s, err := ReadControllerFile(filepath.Join(p.Abs(), "cpu.weight")); err == nil {
			if w, err := cgparse.ParseQuantity(s); err == nil {
				cs.CPUShares = w
			}
		}
		return
	}

	if s, err := ReadControllerFile(filepath.Join(p.Abs(), "cpu.cfs_quota_us")); err == nil {
		if q, err := cgparse.ParseQuantity(s); err == nil {
			cs.CPUQuotaUs = q
		}
	}
	if s, err := ReadControllerFile(filepath.Join(p.Abs(), "cpu.cfs_period_us")); err == nil {
		if pr, err := cgparse.ParseQuantity(s); err == nil && pr != cgparse.Unlimited {
			cs.CPUPeriodUs = pr
		}
	}
	if s, err := ReadControllerFile(filepath.Join(p.Abs(), "cpu.shares")); err == nil {
		if sh, err := cgparse.ParseQuantity(s); err == nil {
			cs.CPUShares = sh
		}
	}
}

func readMemoryControls(p CgroupPath, cs *ConstraintSet) {
	limitFile, softFile, swFile, usageFile, swUsageFile := "memory.limit_in_bytes", "memory.soft_limit_in_bytes", "memory.memsw.limit_in_bytes", "memory.usage_in_bytes", "memory.memsw.usage_in_bytes"
	if p.Controller.Version == V2 {
		limitFile, softFile, swFile, usageFile, swUsageFile = "memory.max", "memory.low", "memory.swap.max", "memory.current", "memory.swap.current"
	}

	if s, err := ReadControllerFile(filepath.Join(p.Abs(), limitFile)); err == nil {
		if v, err := cgparse.ParseQuantity(s); err == nil {
			cs.MemLimitBytes = v
		}
	}
	if s, err := ReadControllerFile(filepath.Join(p.Abs(), softFile)); err == nil {
		if v, err := cgparse.ParseQuantity(s); err == nil {
			cs.MemSoftLimit = v
		}
	}
	if s, err := ReadControllerFile(filepath.Join(p.Abs(), swFile)); err == nil {
		if v, err := cgparse.ParseQuantity(s); err == nil {
			cs.MemSwLimit = v
		}
	}
	if s, err := ReadControllerFile(filepath.Join(p.Abs(), usageFile)); err == nil {
		if v, err := cgparse.ParseQuantity(s); err == nil {
			cs.MemUsageBytes = v
		}
	}
	if s, err := ReadControllerFile(filepath.Join(p.Abs(), swUsageFile)); err == nil {
		if v, err := cgparse.ParseQuantity(s); err == nil {
			cs.MemSwapUsage = v
		}
	}
}

func readPidsControls(p CgroupPath, cs *ConstraintSet) {
	if s, err := ReadControllerFile(filepath.Join(p.Abs(), "pids.max")); err == nil {
		if v, err := cgparse.ParseQuantity(s); err == nil {
			cs.PidsMax = v
		}
	}
}
