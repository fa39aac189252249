package cgroup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/containerd/cgroups/v3"
	"github.com/prometheus/procfs"
	"github.com/sirupsen/logrus"

	"github.com/k3s-io/cgroupfs/internal/errkind"
)

var log = logrus.WithField("component", "cgroup")

// Hierarchy is the bootstrap-derived, immutable view of every mounted
// controller on the host, covering both v1 (own mountpoint per controller)
// and v2 (single unified mountpoint, controllers enabled per directory).
// A Hierarchy is never mutated after construction; refresh produces a new
// one and publishes it through Manager.
type Hierarchy struct {
	// byName indexes controllers by (name, version); a hybrid host may
	// have both a v1 and v2 entry for the same controller name.
	byName map[string][]Controller
	// unifiedRoot is the single v2 mountpoint, empty if v2 isn't mounted.
	unifiedRoot string
}

// UnifiedRoot returns the host mountpoint of the v2 unified hierarchy, or ""
// if cgroup v2 is not mounted.
func (h *Hierarchy) UnifiedRoot() string { return h.unifiedRoot }

// Lookup returns the controllers registered under name, preferring none in
// particular; callers needing v1/v2 preference use LookupVersion.
func (h *Hierarchy) Lookup(name string) []Controller {
	return h.byName[name]
}

// LookupVersion returns the controller entry for (name, version), if any.
func (h *Hierarchy) LookupVersion(name string, v Version) (Controller, bool) {
	for _, c := range h.byName[name] {
		if c.Version == v {
			return c, true
		}
	}
	return Controller{}, false
}

const (
	defaultProcRoot    = "/proc"
	defaultCgroupsPath = "/proc/cgroups"
)

// BootstrapOptions lets callers and tests point discovery at an alternate
// procfs root; production use leaves this at its zero value (the real
// /proc).
type BootstrapOptions struct {
	// ProcRoot is passed to procfs.NewFS; it must contain a "self"
	// symlink/directory the way a real /proc does.
	ProcRoot string
	// CgroupsPath overrides /proc/cgroups, used only for the advisory
	// debug log of kernel-enabled controllers.
	CgroupsPath string
}

func (o BootstrapOptions) withDefaults() BootstrapOptions {
	if o.ProcRoot == "" {
		o.ProcRoot = defaultProcRoot
	}
	if o.CgroupsPath == "" {
		o.CgroupsPath = defaultCgroupsPath
	}
	return o
}

// Bootstrap discovers every mounted v1 controller and the v2 unified
// hierarchy by reading mountinfo through procfs, and logs at debug level
// the controller names /proc/cgroups reports as enabled. Controllers the
// kernel supports but mountinfo does not list get no Controller entry and
// resolve to unlimited reads.
func Bootstrap(opts BootstrapOptions) (*Hierarchy, error) {
	opts = opts.withDefaults()

	pfs, err := procfs.NewFS(opts.ProcRoot)
	if err != nil {
		return nil, fmt.Errorf("open procfs at %s: %w", opts.ProcRoot, errkind.ErrFatal)
	}
	mounts, err := pfs.MountInfo()
	if err != nil {
		return nil, fmt.Errorf("read mountinfo: %w", errkind.ErrFatal)
	}

	h := buildHierarchy(mounts)

	log.WithField("mode", cgroupModeString(cgroups.Mode())).Debug("host cgroup mode")

	if h.unifiedRoot != "" {
		if ok, err := isCgroup2Mount(h.unifiedRoot); err == nil && !ok {
			log.WithField("mountpoint", h.unifiedRoot).Warn("mountinfo reports cgroup2 but statfs magic disagrees")
		}
	}

	// /proc/cgroups is advisory only: it tells us which v1 controller
	// names the kernel supports, but mountinfo is authoritative for
	// where (and whether) they're actually mounted. A controller listed
	// here with no mountinfo entry is simply absent from byName, which
	// degrades to "unconstrained" per the read semantics. procfs has no
	// typed parser for this file's subsys-count columns, and we only
	// need it for a debug log, so it's read directly.
	if cg, err := os.Open(opts.CgroupsPath); err == nil {
		defer cg.Close()
		logEnabledControllers(cg)
	}

	return h, nil
}

// buildHierarchy turns procfs's mountinfo rows into a Hierarchy, matching
// each cgroup v1 mount's superblock options to the controller names it
// comounts and recording the single v2 unified mountpoint if present.
func buildHierarchy(mounts []*procfs.MountInfo) *Hierarchy {
	h := &Hierarchy{byName: make(map[string][]Controller)}
	for _, m := range mounts {
		switch m.FSType {
		case "cgroup2":
			h.unifiedRoot = m.MountPoint
		case "cgroup":
			for opt := range m.SuperOptions {
				if opt == "" || opt == "rw" || opt == "ro" || strings.HasPrefix(opt, "name=") {
					continue
				}
				h.byName[opt] = append(h.byName[opt], Controller{
					Name:       opt,
					Version:    V1,
					Mountpoint: m.MountPoint,
				})
			}
		}
	}
	return h
}

// cgroupModeString names containerd/cgroups' CGMode for the debug log;
// Mode() itself always reads the real host /sys/fs/cgroup regardless of
// BootstrapOptions.ProcRoot, so it is informational only and never
// consulted for hierarchy construction.
func cgroupModeString(m cgroups.CGMode) string {
	switch m {
	case cgroups.Legacy:
		return "legacy"
	case cgroups.Hybrid:
		return "hybrid"
	case cgroups.Unified:
		return "unified"
	default:
		return "unavailable"
	}
}

func logEnabledControllers(r io.Reader) {
	scan := bufio.NewScanner(r)
	var names []string
	for scan.Scan() {
		line := scan.Text()
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 4 && fields[3] == "1" {
			names = append(names, fields[0])
		}
	}
	log.WithField("controllers", names).Debug("kernel-enabled cgroup controllers")
}

// unifiedControllers reads cgroup.controllers beneath a v2 directory and
// returns the set of controller names enabled there.
func unifiedControllers(dir string) (map[string]struct{}, error) {
	b, err := os.ReadFile(dir + "/cgroup.controllers")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", dir, errkind.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", dir, errkind.ErrTransient)
	}
	set := make(map[string]struct{})
	for _, name := range strings.Fields(string(b)) {
		set[name] = struct{}{}
	}
	return set, nil
}
