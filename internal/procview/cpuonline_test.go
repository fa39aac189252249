package procview

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/k3s-io/cgroupfs/internal/cgparse"
	"github.com/k3s-io/cgroupfs/internal/cgroup"
)

func TestRenderCPUOnlineRenumbersFromZero(t *testing.T) {
	cs := cgroup.ConstraintSet{CPUSet: cgparse.CPUSet{2, 5}}
	host := cgparse.CPUSet{0, 1, 2, 3, 4, 5, 6, 7}

	out := RenderCPUOnline(cs, host)
	assert.Equal(t, "0-1\n", string(out))
}

func TestRenderCPUOnlineEmptyIntersection(t *testing.T) {
	cs := cgroup.ConstraintSet{CPUSet: cgparse.CPUSet{9}}
	host := cgparse.CPUSet{0, 1}

	out := RenderCPUOnline(cs, host)
	assert.Equal(t, "\n", string(out))
}
