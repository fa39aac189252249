package hostproc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStat = `cpu  100 0 200 300 0 0 0 0 0 0
cpu0 10 0 20 30 0 0 0 0 0 0
cpu1 90 0 180 270 0 0 0 0 0 0
intr 12345 0 0 0
ctxt 98765
btime 1700000000
processes 4321
procs_running 2
procs_blocked 0
softirq 111 0 1 2
`

func TestParseHostStat(t *testing.T) {
	hs, err := parseHostStat(strings.NewReader(sampleStat))
	require.NoError(t, err)

	require.Contains(t, hs.PerCPU, 0)
	require.Contains(t, hs.PerCPU, 1)
	assert.Equal(t, uint64(10), hs.PerCPU[0].User)
	assert.Equal(t, uint64(90), hs.PerCPU[1].User)

	assert.Len(t, hs.Passthrough, 7)
	assert.Equal(t, "intr 12345 0 0 0", hs.Passthrough[0])
	assert.Equal(t, "btime 1700000000", hs.Passthrough[2])
}
