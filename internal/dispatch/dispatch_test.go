package dispatch

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k3s-io/cgroupfs/internal/cgroup"
	"github.com/k3s-io/cgroupfs/internal/cpuacct"
	"github.com/k3s-io/cgroupfs/internal/procview"
)

// fakeDispatcher wires a Manager against a temp-dir cgroup tree (cpu
// controller only, one container) plus a minimal set of host /proc and
// /sys fixtures, and points PID 1's cgroup membership at it.
func fakeDispatcher(t *testing.T) (*Dispatcher, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "self"), 0o755))

	cpuDir := filepath.Join(dir, "sys", "fs", "cgroup", "cpu")
	mountinfo := fmt.Sprintf("22 28 0:20 / %s rw,nosuid shared:9 - cgroup cgroup rw,cpu\n", cpuDir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "self", "mountinfo"), []byte(mountinfo), 0o644))
	cgpath := filepath.Join(dir, "cgroups")
	require.NoError(t, os.WriteFile(cgpath, nil, 0o644))

	m, err := cgroup.NewManager(cgroup.BootstrapOptions{ProcRoot: dir, CgroupsPath: cgpath})
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(cpuDir, "container-a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cpuDir, "container-a", "cpu.shares"), []byte("1024\n"), 0o644))

	cgroupFixture := filepath.Join(dir, "1-cgroup")
	require.NoError(t, os.WriteFile(cgroupFixture, []byte("3:cpu:/container-a\n"), 0o644))
	restore := cgroup.SetProcCgroupPathFunc(func(pid int) string { return cgroupFixture })
	t.Cleanup(restore)

	cpuOnline := filepath.Join(dir, "cpu_online")
	require.NoError(t, os.WriteFile(cpuOnline, []byte("0-3\n"), 0o644))
	loadAvg := filepath.Join(dir, "loadavg")
	require.NoError(t, os.WriteFile(loadAvg, []byte("1.00 2.00 3.00 1/50 1234\n"), 0o644))
	swaps := filepath.Join(dir, "swaps")
	require.NoError(t, os.WriteFile(swaps, []byte("Filename\t\t\t\tType\t\tSize\t\tUsed\t\tPriority\n"), 0o644))

	hosts := HostPaths{
		ProcRoot:  dir,
		CPUOnline: cpuOnline,
		LoadAvg:   loadAvg,
		Swaps:     swaps,
	}
	return New(m, cpuacct.NewCache(), procview.NewLoadCache(), hosts, false), cpuDir
}

func ctxFor(pid uint32) *fuse.Context {
	return &fuse.Context{Caller: fuse.Caller{Pid: pid}}
}

func TestGetAttrWithinOwnCgroupSucceeds(t *testing.T) {
	d, _ := fakeDispatcher(t)
	attr, status := d.GetAttr(ctxFor(1), "/sys/fs/cgroup/cpu/container-a/cpu.shares")
	require.Equal(t, fuse.OK, status)
	assert.NotZero(t, attr.Mode)
}

func TestGetAttrOutsideOwnCgroupIsDenied(t *testing.T) {
	d, _ := fakeDispatcher(t)
	_, status := d.GetAttr(ctxFor(1), "/sys/fs/cgroup/cpu/container-b/cpu.shares")
	assert.NotEqual(t, fuse.OK, status)
}

func TestReadDirListsContainerDirectory(t *testing.T) {
	d, _ := fakeDispatcher(t)
	entries, status := d.ReadDir(ctxFor(1), "/sys/fs/cgroup/cpu/container-a")
	require.Equal(t, fuse.OK, status)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "cpu.shares")
}

func TestReadProxiesBackingControllerFile(t *testing.T) {
	d, _ := fakeDispatcher(t)
	data, status := d.Read(ctxFor(1), "/sys/fs/cgroup/cpu/container-a/cpu.shares")
	require.Equal(t, fuse.OK, status)
	assert.Equal(t, "1024\n", string(data))
}

func TestReadSwapsPassesThroughHost(t *testing.T) {
	d, _ := fakeDispatcher(t)
	data, status := d.Read(ctxFor(1), "/proc/swaps")
	require.Equal(t, fuse.OK, status)
	assert.Contains(t, string(data), "Filename")
}

func TestReadLoadAvgProxiesHostWhenEMADisabled(t *testing.T) {
	d, _ := fakeDispatcher(t)
	data, status := d.Read(ctxFor(1), "/proc/loadavg")
	require.Equal(t, fuse.OK, status)
	assert.Equal(t, "1.00 2.00 3.00 1/50 1234\n", string(data))
}

func TestReadCPUOnlineInheritsHostWithoutCpuset(t *testing.T) {
	d, _ := fakeDispatcher(t)
	data, status := d.Read(ctxFor(1), "/sys/devices/system/cpu/online")
	require.Equal(t, fuse.OK, status)
	assert.Equal(t, "0-3\n", string(data))
}

func TestReadUnknownPathIsNotFound(t *testing.T) {
	d, _ := fakeDispatcher(t)
	_, status := d.Read(ctxFor(1), "/proc/nonexistent")
	assert.Equal(t, fuse.ENOENT, status)
}

func TestWriteOutsideCgroupTreeIsReadOnly(t *testing.T) {
	d, _ := fakeDispatcher(t)
	_, status := d.Write(ctxFor(1), "/proc/stat", []byte("x"))
	assert.Equal(t, fuse.Status(syscall.EROFS), status)
}
