package procview

import (
	"strconv"
	"strings"

	"github.com/k3s-io/cgroupfs/internal/cgparse"
	"github.com/k3s-io/cgroupfs/internal/cgroup"
)

// RenderCPUInfo synthesizes /proc/cpuinfo: host's processor blocks are
// filtered to cpuset∩online, in that intersection's order, and each
// surviving block's "processor" field is renumbered starting at 0. Every
// other line of a kept block is passed through byte-for-byte.
func RenderCPUInfo(host string, cs cgroup.ConstraintSet, hostOnline cgparse.CPUSet) []byte {
	H := virtualCPUs(cs, hostOnline)
	wanted := make(map[int]int, len(H)) // host CPU id -> new virtual index
	for i, id := range H {
		wanted[id] = i
	}

	blocks := splitBlocks(host)
	kept := make([]string, 0, len(H))
	// order output by H, not by host file order, so index reassignment
	// always lines up with the intersection order the spec defines.
	byHostID := make(map[int]string, len(blocks))
	for _, block := range blocks {
		id, ok := blockProcessorID(block)
		if !ok {
			continue
		}
		byHostID[id] = block
	}
	for _, hostID := range H {
		block, ok := byHostID[hostID]
		if !ok {
			continue
		}
		kept = append(kept, rewriteProcessorBlock(block, wanted[hostID]))
	}

	return []byte(strings.Join(kept, "\n\n") + "\n")
}

func splitBlocks(host string) []string {
	host = strings.TrimRight(host, "\n")
	if host == "" {
		return nil
	}
	return strings.Split(host, "\n\n")
}

func blockProcessorID(block string) (int, bool) {
	for _, line := range strings.Split(block, "\n") {
		if !strings.HasPrefix(line, "processor") {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
		if err != nil {
			continue
		}
		return id, true
	}
	return 0, false
}

func rewriteProcessorBlock(block string, newID int) string {
	lines := strings.Split(block, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "processor") {
			lines[i] = rewriteProcessorLine(line, newID)
			break
		}
	}
	return strings.Join(lines, "\n")
}

func rewriteProcessorLine(line string, newID int) string {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line
	}
	prefix := line[:idx+1]
	rest := line[idx+1:]
	trimmed := strings.TrimLeft(rest, " \t")
	lead := rest[:len(rest)-len(trimmed)]
	return prefix + lead + strconv.Itoa(newID)
}
