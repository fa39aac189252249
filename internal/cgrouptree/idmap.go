package cgrouptree

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/k3s-io/cgroupfs/internal/errkind"
)

// RemapID translates a host uid or gid into the caller's userns view, by
// reading /proc/<pid>/uid_map or /proc/<pid>/gid_map (file must be one of
// those two names). hostID passes through unchanged for a PID in the
// initial user namespace, where the kernel installs an identity mapping
// covering the full id space.
func RemapID(pid int, hostID uint32, file string) (uint32, error) {
	mappings, err := readIDMap(pid, file)
	if err != nil {
		return hostID, err
	}
	for _, m := range mappings {
		hostStart := m.HostID
		hostEnd := hostStart + m.Size
		if hostID >= hostStart && hostID < hostEnd {
			return m.ContainerID + (hostID - hostStart), nil
		}
	}
	return hostID, nil
}

func readIDMap(pid int, file string) ([]specs.LinuxIDMapping, error) {
	return readIDMapAt(fmt.Sprintf("/proc/%d/%s", pid, file))
}

func readIDMapAt(path string) ([]specs.LinuxIDMapping, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, errkind.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", path, errkind.ErrTransient)
	}
	defer f.Close()

	var out []specs.LinuxIDMapping
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		fields := strings.Fields(scan.Text())
		if len(fields) != 3 {
			continue
		}
		containerID, err1 := strconv.ParseUint(fields[0], 10, 32)
		hostID, err2 := strconv.ParseUint(fields[1], 10, 32)
		size, err3 := strconv.ParseUint(fields[2], 10, 32)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		out = append(out, specs.LinuxIDMapping{
			ContainerID: uint32(containerID),
			HostID:      uint32(hostID),
			Size:        uint32(size),
		})
	}
	return out, scan.Err()
}
