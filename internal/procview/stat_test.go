package procview

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k3s-io/cgroupfs/internal/cgparse"
	"github.com/k3s-io/cgroupfs/internal/cgroup"
	"github.com/k3s-io/cgroupfs/internal/cpuacct"
	"github.com/k3s-io/cgroupfs/internal/hostproc"
)

const statFakeMountinfo = `22 28 0:20 / /sys/fs/cgroup/cpu,cpuacct rw,nosuid shared:9 - cgroup cgroup rw,cpu,cpuacct
`

func TestRenderStatAggregatesAndPassesThrough(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "self"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "self", "mountinfo"), []byte(statFakeMountinfo), 0o644))
	cgpath := filepath.Join(dir, "cgroups")
	require.NoError(t, os.WriteFile(cgpath, nil, 0o644))

	h, err := cgroup.Bootstrap(cgroup.BootstrapOptions{ProcRoot: dir, CgroupsPath: cgpath})
	require.NoError(t, err)

	cgroupFixture := filepath.Join(dir, "1-cgroup")
	require.NoError(t, os.WriteFile(cgroupFixture, []byte("3:cpu,cpuacct:/\n"), 0o644))
	restore := cgroup.SetProcCgroupPathFunc(func(pid int) string { return cgroupFixture })
	defer restore()

	cache := cpuacct.NewCache()
	hostStat := &hostproc.HostStat{
		PerCPU: map[int]cpuacct.Ticks{
			0: {User: 10, System: 20},
			1: {User: 30, System: 40},
		},
		Passthrough: []string{"btime 1700000000", "processes 10"},
	}

	cs := cgroup.ConstraintSet{CPUSet: cgparse.CPUSet{0, 1}}
	hostOnline := cgparse.CPUSet{0, 1}
	ctx := Context{Cache: cache, PID: 1, Hierarchy: h}

	out, err := RenderStat(ctx, time.Unix(0, 0), hostStat, cs, hostOnline)
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "cpu 40 0 60 0 0 0 0 0\n")
	assert.Contains(t, s, "cpu0 10 0 20 0 0 0 0 0\n")
	assert.Contains(t, s, "cpu1 30 0 40 0 0 0 0 0\n")
	assert.Contains(t, s, "btime 1700000000\n")
	assert.Contains(t, s, "processes 10\n")
}
