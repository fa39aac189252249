// Package hostproc reads host pseudo-files that feed the proc-view
// synthesizers. Per-process stat files and the host boot time are read
// through github.com/prometheus/procfs; /proc/stat (see HostStat doc
// comment) and the passthrough files (ReadLines, ReadRaw) are read directly.
package hostproc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/k3s-io/cgroupfs/internal/cpuacct"
	"github.com/k3s-io/cgroupfs/internal/errkind"
)

// HostStat is the parsed content of /proc/stat. Unlike the rest of this
// package, it is hand-parsed rather than read through procfs.Stat: that
// type stores CPU fields as float64 seconds (ticks divided by the kernel's
// USER_HZ), which is lossy for the raw integer tick counters the cpu
// accounting cache's monotonicity invariant is defined over. Only the first
// eight tick columns of each "cpuN" line are kept (see cpuacct.Ticks).
type HostStat struct {
	// PerCPU maps host CPU id to its raw tick counters, for every
	// "cpuN" line present.
	PerCPU map[int]cpuacct.Ticks
	// Passthrough holds every other line verbatim, in file order: intr,
	// ctxt, btime, processes, procs_running, procs_blocked, softirq, and
	// the "cpu" aggregate line is recomputed rather than passed through.
	Passthrough []string
}

// ReadHostStat reads and parses path (normally "/proc/stat").
func ReadHostStat(path string) (*HostStat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, errkind.ErrFatal)
	}
	defer f.Close()
	return parseHostStat(f)
}

func parseHostStat(r io.Reader) (*HostStat, error) {
	hs := &HostStat{PerCPU: make(map[int]cpuacct.Ticks)}
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		line := scan.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch {
		case fields[0] == "cpu":
			// Recomputed from PerCPU by the renderer; skip the raw
			// aggregate line entirely.
			continue
		case strings.HasPrefix(fields[0], "cpu"):
			id, err := strconv.Atoi(strings.TrimPrefix(fields[0], "cpu"))
			if err != nil {
				continue
			}
			t, err := parseTicks(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("parse %q: %w", line, errkind.ErrInvalid)
			}
			hs.PerCPU[id] = t
		default:
			hs.Passthrough = append(hs.Passthrough, line)
		}
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("scan /proc/stat: %w", errkind.ErrFatal)
	}
	return hs, nil
}

func parseTicks(fields []string) (cpuacct.Ticks, error) {
	vals := make([]uint64, 8)
	for i := 0; i < len(fields) && i < 8; i++ {
		v, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return cpuacct.Ticks{}, err
		}
		vals[i] = v
	}
	return cpuacct.Ticks{
		User: vals[0], Nice: vals[1], System: vals[2], Idle: vals[3],
		IOWait: vals[4], IRQ: vals[5], SoftIRQ: vals[6], Steal: vals[7],
	}, nil
}
