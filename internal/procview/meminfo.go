package procview

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/k3s-io/cgroupfs/internal/cgparse"
	"github.com/k3s-io/cgroupfs/internal/cgroup"
)

var numericLineRE = regexp.MustCompile(`^(\S+:)(\s+)(\d+)(.*)$`)

// RenderMemInfo synthesizes /proc/meminfo: the memory-capacity keys are
// recomputed from the memory cgroup's limit and usage, every other key is
// passed through verbatim, and the host's column alignment is preserved by
// keeping each rewritten line's total width unchanged wherever the new
// value's digit count allows it.
func RenderMemInfo(hostLines []string, cs cgroup.ConstraintSet) []byte {
	hostTotalKB := lineValueKB(hostLines, "MemTotal")

	memTotalKB := hostTotalKB
	if cs.MemLimitBytes != cgparse.Unlimited {
		if limitKB := cs.MemLimitBytes / 1024; limitKB < memTotalKB {
			memTotalKB = limitKB
		}
	}

	usageKB := cs.MemUsageBytes / 1024
	memFreeKB := memTotalKB - usageKB
	if memFreeKB < 0 {
		memFreeKB = 0
	}

	swapTotalKB := lineValueKB(hostLines, "SwapTotal")
	swapFreeKB := lineValueKB(hostLines, "SwapFree")
	if cs.MemSwLimit != cgparse.Unlimited && cs.MemLimitBytes != cgparse.Unlimited && cs.MemSwLimit >= cs.MemLimitBytes {
		swapTotalKB = (cs.MemSwLimit - cs.MemLimitBytes) / 1024
		swapUsageKB := (cs.MemSwapUsage - cs.MemUsageBytes) / 1024
		swapFreeKB = swapTotalKB - swapUsageKB
		if swapFreeKB < 0 {
			swapFreeKB = 0
		}
	}

	rewrites := map[string]int64{
		"MemTotal":     memTotalKB,
		"MemFree":      memFreeKB,
		"MemAvailable": memFreeKB,
		"SwapTotal":    swapTotalKB,
		"SwapFree":     swapFreeKB,
	}

	out := make([]string, len(hostLines))
	for i, line := range hostLines {
		key := lineKey(line)
		if v, ok := rewrites[key]; ok {
			out[i] = rewriteNumericLine(line, v)
		} else {
			out[i] = line
		}
	}
	return []byte(strings.Join(out, "\n") + "\n")
}

func lineKey(line string) string {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return ""
	}
	return line[:idx]
}

func lineValueKB(lines []string, key string) int64 {
	for _, line := range lines {
		if lineKey(line) != key {
			continue
		}
		m := numericLineRE.FindStringSubmatch(line)
		if m == nil {
			return 0
		}
		v, err := strconv.ParseInt(m[3], 10, 64)
		if err != nil {
			return 0
		}
		return v
	}
	return 0
}

// rewriteNumericLine replaces a meminfo line's value, preserving the
// original line's total width when the new value's digit count differs by
// padding or trimming the run of spaces between the key and the number.
func rewriteNumericLine(line string, newValue int64) string {
	m := numericLineRE.FindStringSubmatch(line)
	if m == nil {
		return line
	}
	key, spaces, num, suffix := m[1], m[2], m[3], m[4]
	newNum := strconv.FormatInt(newValue, 10)

	delta := len(num) - len(newNum)
	switch {
	case delta > 0:
		spaces = spaces + strings.Repeat(" ", delta)
	case delta < 0 && len(spaces)+delta >= 1:
		spaces = spaces[:len(spaces)+delta]
	case delta < 0:
		spaces = " "
	}
	return key + spaces + newNum + suffix
}
