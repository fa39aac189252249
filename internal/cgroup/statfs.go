package cgroup

import "golang.org/x/sys/unix"

// isCgroup2Mount cross-checks a mountpoint's filesystem type against the
// kernel's own magic number, independent of what mountinfo's fstype column
// claims. Bootstrap uses this only as a logged sanity check: mountinfo is
// authoritative for hierarchy construction, but a mismatch here (logged as
// a warning) would indicate a bind mount or namespace oddity.
func isCgroup2Mount(path string) (bool, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false, err
	}
	return int64(st.Type) == unix.CGROUP2_SUPER_MAGIC, nil
}
