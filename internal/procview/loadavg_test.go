package procview

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderLoadAvgProxiesHostWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loadavg")
	require.NoError(t, os.WriteFile(path, []byte("1.00 2.00 3.00 1/200 999\n"), 0o644))

	out, err := RenderLoadAvg(false, path, nil, "", nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "1.00 2.00 3.00 1/200 999\n", string(out))
}

func TestLoadStateSeedsOnFirstSample(t *testing.T) {
	s := &LoadState{}
	now := time.Unix(1000, 0)
	s.Sample(4, now)

	l1, l5, l15 := s.Snapshot()
	assert.Equal(t, 4.0, l1)
	assert.Equal(t, 4.0, l5)
	assert.Equal(t, 4.0, l15)
}

func TestLoadStateDecaysTowardNewValue(t *testing.T) {
	s := &LoadState{}
	start := time.Unix(1000, 0)
	s.Sample(4, start)
	s.Sample(0, start.Add(5*time.Second))

	l1, _, _ := s.Snapshot()
	assert.InDelta(t, 4*decay1, l1, 1e-9)
	assert.Less(t, l1, 4.0)
}

func TestLoadCacheGetCreatesAndReuses(t *testing.T) {
	c := NewLoadCache()
	a := c.Get("/sys/fs/cgroup/cpu/x")
	b := c.Get("/sys/fs/cgroup/cpu/x")
	assert.Same(t, a, b)
}
