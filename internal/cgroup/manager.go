package cgroup

import (
	"context"
	"sync/atomic"
)

// holder pairs an immutable Hierarchy with a reference count tracking how
// many in-flight readers currently hold it. It exists so a SIGUSR1 refresh
// can publish a new snapshot without invalidating reads already in flight
// against the old one (spec.md 5, "Shared state").
type holder struct {
	hierarchy *Hierarchy
	refs      atomic.Int64
}

// Manager owns the current Hierarchy snapshot and publishes new ones via
// atomic pointer swap. The hierarchy model is read-mostly: bootstrap once,
// refresh rarely, on an explicit signal.
type Manager struct {
	current atomic.Pointer[holder]
	opts    BootstrapOptions
}

// NewManager bootstraps an initial snapshot and returns a Manager wrapping
// it.
func NewManager(opts BootstrapOptions) (*Manager, error) {
	h, err := Bootstrap(opts)
	if err != nil {
		return nil, err
	}
	m := &Manager{opts: opts}
	hold := &holder{hierarchy: h}
	m.current.Store(hold)
	return m, nil
}

// Snapshot is a held reference to a Hierarchy. Callers must call Release
// when done; the hierarchy value itself is always safe to keep reading
// until Release, even across a concurrent Refresh.
type Snapshot struct {
	h *holder
}

// Hierarchy returns the pinned hierarchy view.
func (s Snapshot) Hierarchy() *Hierarchy { return s.h.hierarchy }

// Release drops this reader's hold on the snapshot.
func (s Snapshot) Release() { s.h.refs.Add(-1) }

// Acquire returns the current hierarchy snapshot, pinning it so a
// concurrent Refresh cannot make it disappear out from under the caller.
func (m *Manager) Acquire() Snapshot {
	for {
		h := m.current.Load()
		h.refs.Add(1)
		if m.current.Load() == h {
			return Snapshot{h: h}
		}
		// Lost the race against a concurrent Refresh; this holder is
		// stale but still valid to read, just not "current" anymore.
		// Release our spurious ref and retry to get the fresh one.
		h.refs.Add(-1)
	}
}

// Refresh re-bootstraps the hierarchy and publishes it as the new current
// snapshot. In-flight readers holding the old snapshot (via Acquire) keep
// seeing consistent old data until they Release; the next Acquire sees the
// new one. Triggered externally by SIGUSR1 (daemon's signal handling is out
// of scope for this layer; WatchRefresh below wires it without owning
// process lifecycle).
func (m *Manager) Refresh(ctx context.Context) error {
	h, err := Bootstrap(m.opts)
	if err != nil {
		return err
	}
	hold := &holder{hierarchy: h}
	m.current.Store(hold)
	log.WithField("controllers", len(h.byName)).Info("cgroup hierarchy refreshed")
	return nil
}

// WatchRefresh calls Refresh every time a value arrives on sig, until ctx is
// done. It does not call signal.Notify itself: owning the process's signal
// disposition is the daemon entrypoint's job, not this library's.
func (m *Manager) WatchRefresh(ctx context.Context, sig <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if err := m.Refresh(ctx); err != nil {
				log.WithError(err).Warn("hierarchy refresh failed, keeping previous snapshot")
			}
		}
	}
}
