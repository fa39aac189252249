package cpuacct

import (
	"sync"
	"time"
)

// vcpuState is the accounting state kept for one virtual CPU index within
// an Entry. offset is added to whatever raw host counters currently map to
// this index; reported is the floor the next render may not go under.
type vcpuState struct {
	offset   Ticks
	reported Ticks
}

// Entry is the monotonic accounting state for one cgroup path. It is safe
// for concurrent use; callers serialize through the per-entry mutex rather
// than a single cache-wide lock, matching the fine-grained locking the
// concurrency model calls for.
type Entry struct {
	mu             sync.Mutex
	vcpus          []vcpuState
	lastSampledAt  time.Time
	lastHostCPUSet []int
	viewSequence   uint64
}

// Render computes the per-virtual-CPU ticks for this sample, given the raw
// host ticks indexed by host CPU id and H, the ordered list of host CPU ids
// (cpuset intersected with online) that define this cgroup's virtual CPU
// numbering for this read.
//
// Shrinking or reordering H never causes a surviving virtual index's
// counters to report a value lower than it has already reported: Render
// folds whatever delta is needed into that index's offset, exactly
// invariant (b) of CpuAccountingEntry.
func (e *Entry) Render(now time.Time, hostRaw map[int]Ticks, H []int) []Ticks {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(H) < len(e.vcpus) {
		e.vcpus = e.vcpus[:len(H)]
	}
	for len(e.vcpus) < len(H) {
		e.vcpus = append(e.vcpus, vcpuState{})
	}

	out := make([]Ticks, len(H))
	for i, hostID := range H {
		raw := hostRaw[hostID]
		v := &e.vcpus[i]
		candidate := raw.add(v.offset)
		if candidate.anyLess(v.reported) {
			// Either the cgroup's cpuset renumbered this index onto a
			// different (cooler) host CPU, or the host counters were
			// reset. Either way, fold the shortfall into the offset so
			// this index never reports less than it already has.
			target := maxTicks(candidate, v.reported)
			v.offset = target.sub(raw)
			candidate = target
		}
		v.reported = candidate
		out[i] = candidate
	}

	e.lastSampledAt = now
	e.lastHostCPUSet = append(e.lastHostCPUSet[:0], H...)
	e.viewSequence++
	return out
}

// ViewSequence returns the monotonic counter bumped on every Render call,
// useful for tests and metrics to observe cache activity.
func (e *Entry) ViewSequence() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewSequence
}
