// Package cgrouptree implements the cgroup-fuse tree (C5): the caller's own
// cgroup subtree, presented read/write at /sys/fs/cgroup/<controller>/...,
// with visibility bounded to paths at or below the caller's own cgroup.
package cgrouptree

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/k3s-io/cgroupfs/internal/cgroup"
	"github.com/k3s-io/cgroupfs/internal/errkind"
)

// maxProxySize bounds a single read/write proxy call; cgroup.procs and
// similar listing files can run much larger than a small control value.
const maxProxySize = 1 << 20

// Tree resolves and serves one caller's view of the cgroup hierarchy.
type Tree struct {
	h *cgroup.Hierarchy
}

// New returns a Tree backed by h.
func New(h *cgroup.Hierarchy) *Tree {
	return &Tree{h: h}
}

// Dirent is one entry returned by Readdir.
type Dirent struct {
	Name  string
	IsDir bool
}

// Attr is the subset of file metadata getattr needs, with UID/GID already
// remapped to the caller's userns root.
type Attr struct {
	Mode os.FileMode
	Size int64
	UID  uint32
	GID  uint32
}

// resolve maps (pid, controller, rel) to a real host path, enforcing that
// rel is at or below the caller's own cgroup path for that controller.
func (t *Tree) resolve(pid int, controller, rel string) (string, error) {
	own, err := cgroup.ResolvePID(t.h, pid, controller)
	if err != nil {
		return "", err
	}
	rel = cleanRel(rel)
	if !isAtOrBelow(own.Rel, rel) {
		return "", fmt.Errorf("path %q is outside caller's cgroup %q: %w", rel, own.Rel, errkind.ErrPermission)
	}
	return filepath.Join(own.Controller.Mountpoint, rel), nil
}

func cleanRel(rel string) string {
	rel = "/" + strings.TrimLeft(rel, "/")
	return filepath.Clean(rel)
}

// isAtOrBelow reports whether target is own or a descendant of own, as
// cgroup path segments rather than a naive string prefix (so "/foo-bar"
// is not mistaken for a child of "/foo").
func isAtOrBelow(own, target string) bool {
	own = cleanRel(own)
	target = cleanRel(target)
	if own == target {
		return true
	}
	if own == "/" {
		return true
	}
	return strings.HasPrefix(target, own+"/")
}

// Readdir lists the backing cgroup directory.
func (t *Tree) Readdir(pid int, controller, rel string) ([]Dirent, error) {
	path, err := t.resolve(pid, controller, rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, classifyPathError(path, err)
	}
	out := make([]Dirent, 0, len(entries))
	for _, e := range entries {
		out = append(out, Dirent{Name: e.Name(), IsDir: e.IsDir()})
	}
	return out, nil
}

// Getattr stats the backing file, remapping ownership to the caller's
// userns root when the caller's PID has a non-identity uid/gid mapping.
func (t *Tree) Getattr(pid int, controller, rel string) (Attr, error) {
	path, err := t.resolve(pid, controller, rel)
	if err != nil {
		return Attr{}, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return Attr{}, classifyPathError(path, err)
	}
	sys, ok := fi.Sys().(*syscall.Stat_t)
	uid, gid := uint32(0), uint32(0)
	if ok {
		uid, gid = sys.Uid, sys.Gid
	}
	ruid, _ := RemapID(pid, uid, "uid_map")
	rgid, _ := RemapID(pid, gid, "gid_map")
	return Attr{Mode: fi.Mode(), Size: fi.Size(), UID: ruid, GID: rgid}, nil
}

// Read proxies a full read of the backing file.
func (t *Tree) Read(pid int, controller, rel string) ([]byte, error) {
	path, err := t.resolve(pid, controller, rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, classifyPathError(path, err)
	}
	defer f.Close()

	buf := make([]byte, maxProxySize)
	n, err := f.Read(buf)
	if err != nil && n == 0 && !errors.Is(err, io.EOF) {
		return nil, classifyPathError(path, err)
	}
	return buf[:n], nil
}

// Write proxies a write to the backing file, after confirming the caller's
// userns root would have write permission on it.
func (t *Tree) Write(pid int, controller, rel string, data []byte) error {
	attr, err := t.Getattr(pid, controller, rel)
	if err != nil {
		return err
	}
	if !writableByRoot(attr) {
		return fmt.Errorf("%s: %w", rel, errkind.ErrPermission)
	}

	path, err := t.resolve(pid, controller, rel)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0); err != nil {
		return classifyPathError(path, err)
	}
	return nil
}

// writableByRoot approximates "the container's userns-root could write
// this file": true when the owning uid as seen from the container is 0 and
// the owner-write bit is set, or when the file grants group or other write.
func writableByRoot(a Attr) bool {
	if a.UID == 0 && a.Mode&0200 != 0 {
		return true
	}
	return a.Mode&0022 != 0
}

func classifyPathError(path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%s: %w", path, errkind.ErrNotFound)
	case os.IsPermission(err):
		return fmt.Errorf("%s: %w", path, errkind.ErrPermission)
	default:
		return fmt.Errorf("%s: %w", path, errkind.ErrInvalid)
	}
}
