package procview

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/k3s-io/cgroupfs/internal/cgroup"
	"github.com/k3s-io/cgroupfs/internal/hostproc"
)

// RenderDiskStats synthesizes /proc/diskstats: when the blkio controller
// reports per-device statistics for the caller's cgroup, diskstats is
// filtered to just the major:minor pairs the cgroup has touched; otherwise
// the degradation rule applies and the host file passes through unchanged.
func RenderDiskStats(h *cgroup.Hierarchy, pid int, hostPath string) ([]byte, error) {
	hostLines, err := hostproc.ReadLines(hostPath)
	if err != nil {
		return nil, err
	}

	devices, ok := blkioDevices(h, pid)
	if !ok {
		return rejoin(hostLines), nil
	}

	var kept []string
	for _, line := range hostLines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		key := fields[0] + ":" + fields[1]
		if _, ok := devices[key]; ok {
			kept = append(kept, line)
		}
	}
	return rejoin(kept), nil
}

// RenderSwaps synthesizes /proc/swaps. The blkio controller has no
// per-cgroup swap-device view, so this is always a host passthrough; it is
// still routed through this package so the dispatch layer has one place to
// ask for every virtualized file.
func RenderSwaps(hostPath string) ([]byte, error) {
	return hostproc.ReadRaw(hostPath)
}

func rejoin(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

// blkioDevices returns the set of "major:minor" device keys the blkio
// controller has recorded activity for in the caller's cgroup, and whether
// that statistic was available at all (false means: degrade to passthrough).
func blkioDevices(h *cgroup.Hierarchy, pid int) (map[string]struct{}, bool) {
	p, err := cgroup.ResolvePID(h, pid, "blkio")
	if err != nil {
		return nil, false
	}
	s, err := cgroup.ReadControllerFile(filepath.Join(p.Abs(), "blkio.throttle.io_service_bytes"))
	if err != nil {
		return nil, false
	}

	devices := make(map[string]struct{})
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		dev := fields[0]
		if _, _, ok := splitMajorMinor(dev); ok {
			devices[dev] = struct{}{}
		}
	}
	if len(devices) == 0 {
		return nil, false
	}
	return devices, true
}

func splitMajorMinor(s string) (int, int, bool) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(s[:idx])
	if err != nil {
		return 0, 0, false
	}
	minor, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}
