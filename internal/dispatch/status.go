package dispatch

import (
	"errors"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/k3s-io/cgroupfs/internal/errkind"
)

// classify maps an internal error to the nearest FUSE errno, the last step
// before a result crosses back into transport territory. fuse.Status is
// just an int32 errno, so anything past the handful of constants the
// package itself exports (OK, ENOENT, EIO, EACCES) is built directly from
// the syscall package rather than guessed at.
func classify(err error) fuse.Status {
	if err == nil {
		return fuse.OK
	}
	if errors.Is(err, os.ErrNotExist) {
		return fuse.ENOENT
	}
	if errors.Is(err, os.ErrPermission) {
		return fuse.EACCES
	}

	switch errkind.Classify(err) {
	case errkind.NotFound:
		return fuse.ENOENT
	case errkind.Permission:
		return fuse.EACCES
	case errkind.NotSupported:
		return fuse.Status(syscall.ENOSYS)
	case errkind.Invalid:
		return fuse.Status(syscall.EINVAL)
	case errkind.Busy:
		return fuse.Status(syscall.EBUSY)
	case errkind.Transient:
		return fuse.Status(syscall.EAGAIN)
	case errkind.Fatal:
		return fuse.EIO
	default:
		return fuse.EIO
	}
}
