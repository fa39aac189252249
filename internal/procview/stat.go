package procview

import (
	"fmt"
	"strings"
	"time"

	"github.com/k3s-io/cgroupfs/internal/cgparse"
	"github.com/k3s-io/cgroupfs/internal/cgroup"
	"github.com/k3s-io/cgroupfs/internal/cpuacct"
	"github.com/k3s-io/cgroupfs/internal/hostproc"
)

// RenderStat synthesizes /proc/stat for ctx.PID: an aggregate "cpu" line and
// one "cpuN" line per virtual CPU, both driven through the accounting cache
// so counters never regress across cpuset changes, followed by every
// non-CPU line of host's /proc/stat verbatim. Each synthesized tick line is
// the label followed by the eight cpuacct.Ticks columns, separated by single
// spaces; the host's guest and guest_nice columns and the double space after
// the aggregate "cpu" label are not reproduced.
func RenderStat(ctx Context, now time.Time, hostStat *hostproc.HostStat, cs cgroup.ConstraintSet, hostOnline cgparse.CPUSet) ([]byte, error) {
	key, err := cpuCacheKey(ctx)
	if err != nil {
		return nil, err
	}

	H := virtualCPUs(cs, hostOnline)
	entry := ctx.Cache.Get(key)
	vcpus := entry.Render(now, hostStat.PerCPU, []int(H))
	agg := cpuacct.Aggregate(vcpus)

	var b strings.Builder
	writeTicksLine(&b, "cpu", agg)
	for i, t := range vcpus {
		writeTicksLine(&b, fmt.Sprintf("cpu%d", i), t)
	}
	for _, line := range hostStat.Passthrough {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}

func writeTicksLine(b *strings.Builder, label string, t cpuacct.Ticks) {
	fmt.Fprintf(b, "%s %d %d %d %d %d %d %d %d\n",
		label, t.User, t.Nice, t.System, t.Idle, t.IOWait, t.IRQ, t.SoftIRQ, t.Steal)
}

// cpuCacheKey resolves the cgroup directory that keys the accounting cache
// for ctx.PID, preferring the dedicated cpuacct controller (v1) and falling
// back to the combined cpu controller (v2, or v1 hosts that comount them).
func cpuCacheKey(ctx Context) (string, error) {
	if p, err := cgroup.ResolvePID(ctx.Hierarchy, ctx.PID, "cpuacct"); err == nil {
		return p.Abs(), nil
	}
	p, err := cgroup.ResolvePID(ctx.Hierarchy, ctx.PID, "cpu")
	if err != nil {
		return "", err
	}
	return p.Abs(), nil
}
