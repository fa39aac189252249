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
)

const uptimeFakeHostStat = `cpu  0 0 0 0 0 0 0 0 0 0
intr 0
ctxt 0
btime 1700000000
processes 0
procs_running 0
procs_blocked 0
softirq 0
`

func TestRenderUptimeScalesIdleByVirtCPUCount(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stat"), []byte(uptimeFakeHostStat), 0o644))
	pdir := filepath.Join(dir, "1")
	require.NoError(t, os.MkdirAll(pdir, 0o755))
	// starttime = 0 ticks, so the process started exactly at boot.
	line := "1 (fake) S 0 1 1 0 -1 4194560 29059 0 3 0 12 8 0 0 20 0 1 0 0 7626752 622 18446744073709551615 4194304 5060924 140736968786432 140736968785680 140024852759211 0 0 0 0 2143420159 0 0 0 17 0 0 0 0 0 0 7162904 7164912 8192000 140736968790925 140736968790945 140736968790945 140736968791079 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(pdir, "stat"), []byte(line), 0o644))

	now := time.Unix(1700000100, 0) // 100 seconds after boot/start
	cs := cgroup.ConstraintSet{CPUSet: cgparse.CPUSet{0, 1}}
	host := cgparse.CPUSet{0, 1, 2, 3}

	out, err := RenderUptime(now, []int{1}, cs, host, dir)
	require.NoError(t, err)
	assert.Equal(t, "100.00 200.00\n", string(out))
}

func TestRenderUptimeNoProcessesIsZero(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stat"), []byte(uptimeFakeHostStat), 0o644))

	cs := cgroup.ConstraintSet{}
	host := cgparse.CPUSet{0}
	out, err := RenderUptime(time.Unix(1700000100, 0), nil, cs, host, dir)
	require.NoError(t, err)
	assert.Equal(t, "0.00 0.00\n", string(out))
}
