package cgroup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k3s-io/cgroupfs/internal/cgparse"
)

func TestBuildConstraintSetDegradesOnAbsentControllers(t *testing.T) {
	root := t.TempDir()
	h := &Hierarchy{byName: make(map[string][]Controller)}
	cgFile := filepath.Join(root, "self-cgroup")
	require.NoError(t, os.WriteFile(cgFile, []byte("5:cpu:/\n"), 0o644))
	procCgroupPath = func(pid int) string { return cgFile }

	cs := BuildConstraintSet(h, 1)
	assert.Equal(t, cgparse.Unlimited, cs.MemLimitBytes)
	assert.Equal(t, cgparse.Unlimited, cs.CPUQuotaUs)
	assert.Equal(t, cgparse.Unlimited, cs.PidsMax)
	assert.Empty(t, cs.CPUSet)
}

func TestBuildConstraintSetMemoryScenario(t *testing.T) {
	root := t.TempDir()
	memDir := filepath.Join(root, "memory")
	require.NoError(t, os.MkdirAll(memDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(memDir, "memory.limit_in_bytes"), []byte("1073741824\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(memDir, "memory.usage_in_bytes"), []byte("0\n"), 0o644))

	h := &Hierarchy{byName: map[string][]Controller{
		"memory": {{Name: "memory", Version: V1, Mountpoint: memDir}},
	}}
	cgFile := filepath.Join(root, "self-cgroup")
	require.NoError(t, os.WriteFile(cgFile, []byte("5:memory:/\n"), 0o644))
	procCgroupPath = func(pid int) string { return cgFile }

	cs := BuildConstraintSet(h, 1)
	assert.EqualValues(t, 1073741824, cs.MemLimitBytes)
	assert.EqualValues(t, 0, cs.MemUsageBytes)
}
