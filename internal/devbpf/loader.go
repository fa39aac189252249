package devbpf

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/k3s-io/cgroupfs/internal/errkind"
)

var log = logrus.WithField("component", "devbpf")

var rlimitOnce sync.Once

func removeMemlockOnce() {
	rlimitOnce.Do(func() {
		if err := rlimit.RemoveMemlock(); err != nil {
			log.WithError(err).Warn("failed to remove memlock rlimit")
		}
	})
}

// Handle is one loaded classifier program plus its current per-cgroup
// attachments, guarded by a mutex per the concurrency model's "mutex per
// program handle" rule.
type Handle struct {
	mu    sync.Mutex
	prog  *ebpf.Program
	spec  *Program
	links map[string]link.Link

	attachTotal atomic.Int64
	detachTotal atomic.Int64
}

// ProbeSupport reports whether the host kernel supports
// BPF_PROG_TYPE_CGROUP_DEVICE by loading a two-instruction program
// (mov r0, 1; exit), without leaving anything loaded.
func ProbeSupport() error {
	removeMemlockOnce()
	prog, err := loadProgram(&Program{Insns: returnInsns(true), DefaultPolicy: true})
	if err != nil {
		return err
	}
	prog.Close()
	return nil
}

// Load assembles rules and loads the resulting program into the kernel
// once (a single bpf(2) call), yielding a Handle other calls attach/detach
// against.
func Load(rules []DeviceRule) (*Handle, error) {
	removeMemlockOnce()
	p := Assemble(rules)
	prog, err := loadProgram(p)
	if err != nil {
		return nil, err
	}
	return &Handle{prog: prog, spec: p, links: make(map[string]link.Link)}, nil
}

func loadProgram(p *Program) (*ebpf.Program, error) {
	prog, err := ebpf.NewProgram(&ebpf.ProgramSpec{
		Type:         ebpf.CGroupDevice,
		Instructions: p.Insns,
		License:      "GPL",
	})
	if err != nil {
		if errors.Is(err, ebpf.ErrNotSupported) || errors.Is(err, unix.EPERM) || errors.Is(err, unix.ENOSYS) {
			return nil, fmt.Errorf("device cgroup unsupported: %w", errkind.ErrNotSupported)
		}
		return nil, fmt.Errorf("load device cgroup program: %w", errkind.ErrFatal)
	}
	return prog, nil
}

// Attach attaches h to the v2 cgroup directory at cgroupPath. Re-attaching
// at the same path closes the previous link first and then creates a new
// one, so the replacement is not atomic: between the two steps the path has
// no program from h attached, and if the new attach fails it stays that
// way. If the kernel reports the path already holds a conflicting
// attachment, that surfaces as errkind.ErrBusy.
func (h *Handle) Attach(cgroupPath string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.links[cgroupPath]; ok {
		existing.Close()
		delete(h.links, cgroupPath)
	}

	f, err := os.Open(cgroupPath)
	if err != nil {
		return fmt.Errorf("%s: %w", cgroupPath, errkind.ErrNotFound)
	}
	defer f.Close()

	l, err := link.AttachCgroup(link.CgroupOptions{
		Path:    cgroupPath,
		Attach:  ebpf.AttachCGroupDevice,
		Program: h.prog,
	})
	if err != nil {
		if errors.Is(err, unix.EBUSY) {
			return fmt.Errorf("attach %s: %w", cgroupPath, errkind.ErrBusy)
		}
		if errors.Is(err, ebpf.ErrNotSupported) {
			return fmt.Errorf("device cgroup unsupported: %w", errkind.ErrNotSupported)
		}
		return fmt.Errorf("attach %s: %w", cgroupPath, errkind.ErrFatal)
	}
	h.links[cgroupPath] = l
	h.attachTotal.Add(1)
	return nil
}

// AttachedCount reports the number of cgroup paths currently attached,
// for metrics.
func (h *Handle) AttachedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.links)
}

// Counts returns the cumulative attach and detach call counts, for metrics.
func (h *Handle) Counts() (attached, detached int64) {
	return h.attachTotal.Load(), h.detachTotal.Load()
}

// Detach removes h from cgroupPath. A cgroup directory that has already
// vanished, or was never attached, is treated as already detached.
func (h *Handle) Detach(cgroupPath string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.links[cgroupPath]
	if !ok {
		return nil
	}
	delete(h.links, cgroupPath)
	h.detachTotal.Add(1)

	if _, err := os.Stat(cgroupPath); os.IsNotExist(err) {
		return nil
	}
	if err := l.Close(); err != nil {
		return fmt.Errorf("detach %s: %w", cgroupPath, errkind.ErrInvalid)
	}
	return nil
}

// Close releases the loaded program and every live attachment.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for path, l := range h.links {
		l.Close()
		delete(h.links, path)
	}
	return h.prog.Close()
}
