package cpuacct

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderMonotonicAcrossCpusetShrink(t *testing.T) {
	e := &Entry{}
	host := map[int]Ticks{
		0: {User: 100}, 1: {User: 200}, 2: {User: 300}, 3: {User: 400},
	}
	now := time.Unix(0, 0)

	out1 := e.Render(now, host, []int{0, 1, 2, 3})
	assert.Len(t, out1, 4)
	assert.Equal(t, uint64(100), out1[0].User)
	assert.Equal(t, uint64(200), out1[1].User)

	// cpuset shrinks to {0,1}; host ticks advance.
	host2 := map[int]Ticks{
		0: {User: 150}, 1: {User: 260}, 2: {User: 300}, 3: {User: 400},
	}
	now2 := now.Add(time.Second)
	out2 := e.Render(now2, host2, []int{0, 1})
	assert.Len(t, out2, 2)
	assert.GreaterOrEqual(t, out2[0].User, out1[0].User)
	assert.GreaterOrEqual(t, out2[1].User, out1[1].User)
}

func TestRenderNeverRegressesOnRenumberOrReset(t *testing.T) {
	e := &Entry{}
	now := time.Unix(0, 0)

	// vcpu0 <- host2, vcpu1 <- host5
	out1 := e.Render(now, map[int]Ticks{2: {User: 1000}, 5: {User: 2000}}, []int{2, 5})
	assert.Equal(t, uint64(1000), out1[0].User)
	assert.Equal(t, uint64(2000), out1[1].User)

	// Host counters reset (e.g. reboot-like discontinuity) and the
	// cpuset is renumbered so vcpu0 now maps to host5 and vcpu1 to
	// host2: reported values must never go backwards.
	out2 := e.Render(now.Add(time.Second), map[int]Ticks{2: {User: 10}, 5: {User: 20}}, []int{5, 2})
	assert.GreaterOrEqual(t, out2[0].User, out1[0].User)
	assert.GreaterOrEqual(t, out2[1].User, out1[1].User)
}

func TestAggregateSumsVirtualCPUs(t *testing.T) {
	agg := Aggregate([]Ticks{{User: 1, System: 2}, {User: 3, System: 4}})
	assert.Equal(t, Ticks{User: 4, System: 6}, agg)
}
