package devbpf

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePrivileged(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("loading a BPF_PROG_TYPE_CGROUP_DEVICE program requires root or CAP_BPF")
	}
}

func TestProbeSupportOnPrivilegedHost(t *testing.T) {
	requirePrivileged(t)
	assert.NoError(t, ProbeSupport())
}

func TestLoadAttachDetach(t *testing.T) {
	requirePrivileged(t)

	h, err := Load([]DeviceRule{{Global: true, Allow: true}})
	require.NoError(t, err)
	defer h.Close()

	dir := t.TempDir()
	require.NoError(t, h.Attach(dir))
	require.NoError(t, h.Detach(dir))
}

func TestDetachVanishedCgroupIsIdempotent(t *testing.T) {
	requirePrivileged(t)

	h, err := Load([]DeviceRule{{Global: true, Allow: false}})
	require.NoError(t, err)
	defer h.Close()

	dir := t.TempDir()
	require.NoError(t, h.Attach(dir))
	require.NoError(t, os.RemoveAll(dir))
	assert.NoError(t, h.Detach(dir))
	assert.NoError(t, h.Detach(dir))
}
