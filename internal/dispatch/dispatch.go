// Package dispatch routes FUSE-facing operations to the proc-view
// synthesizers (C4) and the cgroup-fuse tree (C5). It intentionally stops
// short of a kernel message loop: a real mount driven by
// github.com/hanwen/go-fuse/v2/fs or the raw fuse.Server is daemon-entrypoint
// wiring, out of scope here.
package dispatch

import (
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/sirupsen/logrus"

	"github.com/k3s-io/cgroupfs/internal/cgparse"
	"github.com/k3s-io/cgroupfs/internal/cgroup"
	"github.com/k3s-io/cgroupfs/internal/cgrouptree"
	"github.com/k3s-io/cgroupfs/internal/cpuacct"
	"github.com/k3s-io/cgroupfs/internal/hostproc"
	"github.com/k3s-io/cgroupfs/internal/procview"
)

var log = logrus.WithField("component", "dispatch")

// Transport is the boundary a mount driver (github.com/hanwen/go-fuse/v2/fs
// or an equivalent kernel message loop) calls into. It is specified here so
// that boundary is a concrete, testable contract; the loop that receives
// kernel requests and calls these methods is daemon-entrypoint/transport
// wiring and is not implemented in this package.
type Transport interface {
	GetAttr(ctx *fuse.Context, path string) (*fuse.Attr, fuse.Status)
	ReadDir(ctx *fuse.Context, path string) ([]fuse.DirEntry, fuse.Status)
	Read(ctx *fuse.Context, path string) ([]byte, fuse.Status)
	Write(ctx *fuse.Context, path string, data []byte) (uint32, fuse.Status)
	Release(path string)
}

var _ Transport = (*Dispatcher)(nil)

// HostPaths are the real host files the proc-view synthesizers read from,
// overridable in tests; production callers leave the zero value, which
// resolves to the standard /proc and /sys locations.
type HostPaths struct {
	ProcRoot  string
	CPUInfo   string
	MemInfo   string
	Stat      string
	Uptime    string
	LoadAvg   string
	Swaps     string
	DiskStats string
	CPUOnline string
}

func (p HostPaths) withDefaults() HostPaths {
	if p.ProcRoot == "" {
		p.ProcRoot = "/proc"
	}
	if p.CPUInfo == "" {
		p.CPUInfo = p.ProcRoot + "/cpuinfo"
	}
	if p.MemInfo == "" {
		p.MemInfo = p.ProcRoot + "/meminfo"
	}
	if p.Stat == "" {
		p.Stat = p.ProcRoot + "/stat"
	}
	if p.Uptime == "" {
		p.Uptime = p.ProcRoot + "/uptime"
	}
	if p.LoadAvg == "" {
		p.LoadAvg = p.ProcRoot + "/loadavg"
	}
	if p.Swaps == "" {
		p.Swaps = p.ProcRoot + "/swaps"
	}
	if p.DiskStats == "" {
		p.DiskStats = p.ProcRoot + "/diskstats"
	}
	if p.CPUOnline == "" {
		p.CPUOnline = "/sys/devices/system/cpu/online"
	}
	return p
}

// onlineCPUs reads the host's own online set, the basis every renderer
// intersects a cgroup's cpuset against.
func (p HostPaths) onlineCPUs() (cgparse.CPUSet, error) {
	b, err := os.ReadFile(p.CPUOnline)
	if err != nil {
		return nil, err
	}
	return cgparse.ParseCPUSet(strings.TrimSpace(string(b)))
}

// Dispatcher holds every long-lived collaborator C4/C5 need and routes
// incoming operations to them by virtual path.
type Dispatcher struct {
	Manager   *cgroup.Manager
	Cache     *cpuacct.Cache
	LoadCache *procview.LoadCache
	Hosts     HostPaths
	EMA       bool
}

// New returns a Dispatcher with defaulted host paths.
func New(m *cgroup.Manager, cache *cpuacct.Cache, loadCache *procview.LoadCache, hosts HostPaths, ema bool) *Dispatcher {
	return &Dispatcher{Manager: m, Cache: cache, LoadCache: loadCache, Hosts: hosts.withDefaults(), EMA: ema}
}

// GetAttr stats a virtualized path for the calling process, used by the
// FUSE lookup/getattr operations.
func (d *Dispatcher) GetAttr(ctx *fuse.Context, path string) (*fuse.Attr, fuse.Status) {
	if rel, ok := cgroupTreeRel(path); ok {
		snap := d.Manager.Acquire()
		defer snap.Release()
		tree := cgrouptree.New(snap.Hierarchy())
		controller, sub := splitController(rel)
		attr, err := tree.Getattr(int(ctx.Pid), controller, sub)
		if err != nil {
			return nil, classify(err)
		}
		return &fuse.Attr{
			Mode:  uint32(attr.Mode.Perm()),
			Size:  uint64(attr.Size),
			Owner: fuse.Owner{Uid: attr.UID, Gid: attr.GID},
		}, fuse.OK
	}

	if !isVirtualProcPath(path) {
		return nil, fuse.ENOENT
	}
	return &fuse.Attr{Mode: 0444}, fuse.OK
}

// ReadDir lists a cgroup-fuse directory. Virtual /proc files are leaves
// and never reach this path.
func (d *Dispatcher) ReadDir(ctx *fuse.Context, path string) ([]fuse.DirEntry, fuse.Status) {
	rel, ok := cgroupTreeRel(path)
	if !ok {
		return nil, fuse.Status(syscall.ENOTDIR)
	}
	snap := d.Manager.Acquire()
	defer snap.Release()
	tree := cgrouptree.New(snap.Hierarchy())

	controller, sub := splitController(rel)
	entries, err := tree.Readdir(int(ctx.Pid), controller, sub)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(fuse.S_IFREG)
		if e.IsDir {
			mode = fuse.S_IFDIR
		}
		out = append(out, fuse.DirEntry{Name: e.Name, Mode: mode})
	}
	return out, fuse.OK
}

// Read returns the full contents of a virtualized path for the calling
// process. Virtualized /proc files are small enough to always be rendered
// whole rather than served in offset-bounded chunks.
func (d *Dispatcher) Read(ctx *fuse.Context, path string) ([]byte, fuse.Status) {
	if rel, ok := cgroupTreeRel(path); ok {
		snap := d.Manager.Acquire()
		defer snap.Release()
		tree := cgrouptree.New(snap.Hierarchy())
		controller, sub := splitController(rel)
		b, err := tree.Read(int(ctx.Pid), controller, sub)
		if err != nil {
			return nil, classify(err)
		}
		return b, fuse.OK
	}

	b, err := d.renderProc(int(ctx.Pid), path)
	if err != nil {
		return nil, classify(err)
	}
	return b, fuse.OK
}

// Write proxies a write to the cgroup-fuse tree; /proc virtual files are
// always read-only.
func (d *Dispatcher) Write(ctx *fuse.Context, path string, data []byte) (uint32, fuse.Status) {
	rel, ok := cgroupTreeRel(path)
	if !ok {
		return 0, fuse.Status(syscall.EROFS)
	}
	snap := d.Manager.Acquire()
	defer snap.Release()
	tree := cgrouptree.New(snap.Hierarchy())

	controller, sub := splitController(rel)
	if err := tree.Write(int(ctx.Pid), controller, sub, data); err != nil {
		return 0, classify(err)
	}
	return uint32(len(data)), fuse.OK
}

// Release is a no-op: every operation above is self-contained and opens
// no handle that outlives it, so there is nothing to free on release
// beyond what the transport's own file descriptor bookkeeping already does.
func (d *Dispatcher) Release(path string) {}

func cgroupTreeRel(path string) (string, bool) {
	const prefix = "/sys/fs/cgroup/"
	if strings.HasPrefix(path, prefix) {
		return strings.TrimPrefix(path, prefix), true
	}
	return "", false
}

func splitController(rel string) (controller, sub string) {
	parts := strings.SplitN(rel, "/", 2)
	controller = parts[0]
	if len(parts) > 1 {
		sub = "/" + parts[1]
	} else {
		sub = "/"
	}
	return controller, sub
}

func isVirtualProcPath(path string) bool {
	switch path {
	case "/proc/cpuinfo", "/proc/meminfo", "/proc/stat", "/proc/uptime",
		"/proc/loadavg", "/proc/swaps", "/proc/diskstats",
		"/sys/devices/system/cpu/online":
		return true
	default:
		return false
	}
}

// renderProc dispatches one virtualized /proc or /sys file to its C4
// synthesizer for pid.
func (d *Dispatcher) renderProc(pid int, path string) ([]byte, error) {
	snap := d.Manager.Acquire()
	defer snap.Release()
	h := snap.Hierarchy()

	hostOnline, err := d.Hosts.onlineCPUs()
	if err != nil {
		return nil, err
	}
	cs := cgroup.BuildConstraintSet(h, pid)
	now := time.Now()

	switch path {
	case "/sys/devices/system/cpu/online":
		return procview.RenderCPUOnline(cs, hostOnline), nil

	case "/proc/cpuinfo":
		host, err := hostproc.ReadRaw(d.Hosts.CPUInfo)
		if err != nil {
			return nil, err
		}
		return procview.RenderCPUInfo(string(host), cs, hostOnline), nil

	case "/proc/meminfo":
		lines, err := hostproc.ReadLines(d.Hosts.MemInfo)
		if err != nil {
			return nil, err
		}
		return procview.RenderMemInfo(lines, cs), nil

	case "/proc/stat":
		hostStat, err := hostproc.ReadHostStat(d.Hosts.Stat)
		if err != nil {
			return nil, err
		}
		ctx := procview.Context{Hierarchy: h, Cache: d.Cache, PID: pid, ProcRoot: d.Hosts.ProcRoot}
		return procview.RenderStat(ctx, now, hostStat, cs, hostOnline)

	case "/proc/uptime":
		procs, err := cgroupProcs(h, pid)
		if err != nil {
			return nil, err
		}
		return procview.RenderUptime(now, procs, cs, hostOnline, d.Hosts.ProcRoot)

	case "/proc/loadavg":
		if !d.EMA {
			return hostproc.ReadRaw(d.Hosts.LoadAvg)
		}
		procs, err := cgroupProcs(h, pid)
		if err != nil {
			return nil, err
		}
		p, err := cgroup.ResolvePID(h, pid, "cpu")
		key := d.Hosts.LoadAvg
		if err == nil {
			key = p.Abs()
		}
		state := d.LoadCache.Get(key)
		return procview.RenderLoadAvg(true, d.Hosts.LoadAvg, state, d.Hosts.ProcRoot, procs, now)

	case "/proc/diskstats":
		return procview.RenderDiskStats(h, pid, d.Hosts.DiskStats)

	case "/proc/swaps":
		return procview.RenderSwaps(d.Hosts.Swaps)

	default:
		return nil, os.ErrNotExist
	}
}

// cgroupProcs resolves pid's cgroup.procs membership for the cpu
// controller; it degrades to just pid itself if no cpu controller is
// resolvable, so uptime/loadavg never fail outright.
func cgroupProcs(h *cgroup.Hierarchy, pid int) ([]int, error) {
	p, err := cgroup.ResolvePID(h, pid, "cpu")
	if err != nil {
		log.WithField("pid", pid).Debug("no cpu controller resolvable, falling back to self")
		return []int{pid}, nil
	}
	s, err := cgroup.ReadControllerFile(p.Abs() + "/cgroup.procs")
	if err != nil {
		log.WithField("path", p.Abs()).WithError(err).Debug("cgroup.procs unreadable, falling back to self")
		return []int{pid}, nil
	}
	var pids []int
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if n, err := strconv.Atoi(line); err == nil {
			pids = append(pids, n)
		}
	}
	if len(pids) == 0 {
		pids = []int{pid}
	}
	return pids, nil
}
