package cgroup

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/k3s-io/cgroupfs/internal/errkind"
)

// CgroupPath pairs a Controller with the path of a specific cgroup beneath
// it. It is derived on demand from a PID and never cached past the
// operation that produced it, except as a key into the accounting cache.
type CgroupPath struct {
	Controller Controller
	Rel        string
}

// Abs returns the absolute host path of the cgroup directory.
func (p CgroupPath) Abs() string { return p.Controller.Path(p.Rel) }

type cgroupLine struct {
	hierarchyID int
	controllers []string
	path        string
}

// procCgroupPath is overridden in tests to point at a fixture file instead
// of the real /proc.
var procCgroupPath = func(pid int) string {
	return fmt.Sprintf("/proc/%d/cgroup", pid)
}

// SetProcCgroupPathFunc overrides the function used to locate a PID's
// /proc/<pid>/cgroup file, for tests in other packages that need to point
// cgroup resolution at a fixture file. Production code never calls this.
func SetProcCgroupPathFunc(fn func(pid int) string) (restore func()) {
	prev := procCgroupPath
	procCgroupPath = fn
	return func() { procCgroupPath = prev }
}

func readProcCgroup(pid int) ([]cgroupLine, error) {
	f, err := os.Open(procCgroupPath(pid))
	if err != nil {
		return nil, fmt.Errorf("read cgroup membership for pid %d: %w", pid, errkind.ErrFatal)
	}
	defer f.Close()

	var lines []cgroupLine
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		parts := strings.SplitN(scan.Text(), ":", 3)
		if len(parts) != 3 {
			continue
		}
		id, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		var controllers []string
		if parts[1] != "" {
			controllers = strings.Split(parts[1], ",")
		}
		lines = append(lines, cgroupLine{hierarchyID: id, controllers: controllers, path: parts[2]})
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("read cgroup membership for pid %d: %w", pid, errkind.ErrFatal)
	}
	return lines, nil
}

// ResolvePID finds the path of the cgroup that governs controllerName for
// pid. On a hybrid host where the controller is exposed under both v1 and
// the v2 unified hierarchy, v2 wins when the reader's v2 path is non-root;
// otherwise v1 is used (spec open question, resolved this way).
//
// A controller absent from both hierarchies is not an error condition by
// itself: callers should treat errkind.ErrNotFound as "unconstrained" and
// substitute the unlimited/inherit value, per the read semantics in 4.1.
func ResolvePID(h *Hierarchy, pid int, controllerName string) (CgroupPath, error) {
	lines, err := readProcCgroup(pid)
	if err != nil {
		return CgroupPath{}, err
	}

	var v1Path, v2Path string
	var haveV1, haveV2 bool
	for _, l := range lines {
		if l.hierarchyID == 0 {
			v2Path = l.path
			haveV2 = true
			continue
		}
		for _, c := range l.controllers {
			if c == controllerName {
				v1Path = l.path
				haveV1 = true
			}
		}
	}

	if haveV2 && h.unifiedRoot != "" && v2Path != "/" {
		if enabled, err := unifiedControllers(Controller{Mountpoint: h.unifiedRoot}.Path(v2Path)); err == nil {
			if _, ok := enabled[controllerName]; ok {
				return CgroupPath{
					Controller: Controller{Name: controllerName, Version: V2, Mountpoint: h.unifiedRoot, IsUnified: true},
					Rel:        v2Path,
				}, nil
			}
		}
	}

	if haveV1 {
		if ctrl, ok := h.LookupVersion(controllerName, V1); ok {
			return CgroupPath{Controller: ctrl, Rel: v1Path}, nil
		}
	}

	// Fall back to the unified hierarchy even at the root, for hosts
	// that are pure cgroup v2 with no v1 comounts at all.
	if haveV2 && h.unifiedRoot != "" {
		if enabled, err := unifiedControllers(Controller{Mountpoint: h.unifiedRoot}.Path(v2Path)); err == nil {
			if _, ok := enabled[controllerName]; ok {
				return CgroupPath{
					Controller: Controller{Name: controllerName, Version: V2, Mountpoint: h.unifiedRoot, IsUnified: true},
					Rel:        v2Path,
				}, nil
			}
		}
	}

	return CgroupPath{}, fmt.Errorf("controller %q not present for pid %d: %w", controllerName, pid, errkind.ErrNotFound)
}
