// Package cgroup implements the cgroup v1/v2 abstraction layer: discovering
// mounted controllers, resolving a PID to its controller-specific path, and
// reading controller files through the small, never-fail semantics the rest
// of the filesystem depends on.
package cgroup

import "path/filepath"

// Version distinguishes a controller's cgroup hierarchy generation.
type Version int

const (
	V1 Version = iota
	V2
)

func (v Version) String() string {
	if v == V2 {
		return "v2"
	}
	return "v1"
}

// Controller is a named kernel resource manager mounted somewhere on the
// host. At most one Controller exists per (Name, Version) pair.
type Controller struct {
	Name       string
	Version    Version
	Mountpoint string
	IsUnified  bool
}

// Path joins the controller's host mountpoint with a cgroup-relative path.
func (c Controller) Path(rel string) string {
	return filepath.Join(c.Mountpoint, rel)
}
