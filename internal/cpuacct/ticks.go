// Package cpuacct keeps the per-container CPU accounting cache (C3):
// monotonic per-cgroup virtual CPU tick counters that survive cpuset
// rewrites, host counter resets, and container migration without ever
// reporting a tick count lower than one already handed out.
package cpuacct

// Ticks mirrors the numeric fields of a /proc/stat "cpuN" line, in the
// kernel's own column order.
type Ticks struct {
	User, Nice, System, Idle, IOWait, IRQ, SoftIRQ, Steal uint64
}

func (t Ticks) add(o Ticks) Ticks {
	return Ticks{
		User: t.User + o.User, Nice: t.Nice + o.Nice, System: t.System + o.System,
		Idle: t.Idle + o.Idle, IOWait: t.IOWait + o.IOWait, IRQ: t.IRQ + o.IRQ,
		SoftIRQ: t.SoftIRQ + o.SoftIRQ, Steal: t.Steal + o.Steal,
	}
}

func (t Ticks) sub(o Ticks) Ticks {
	return Ticks{
		User: t.User - o.User, Nice: t.Nice - o.Nice, System: t.System - o.System,
		Idle: t.Idle - o.Idle, IOWait: t.IOWait - o.IOWait, IRQ: t.IRQ - o.IRQ,
		SoftIRQ: t.SoftIRQ - o.SoftIRQ, Steal: t.Steal - o.Steal,
	}
}

// anyLess reports whether at least one field of t is strictly less than the
// corresponding field of o, i.e. whether reporting t after o would move any
// single counter backwards.
func (t Ticks) anyLess(o Ticks) bool {
	return t.User < o.User || t.Nice < o.Nice || t.System < o.System ||
		t.Idle < o.Idle || t.IOWait < o.IOWait || t.IRQ < o.IRQ ||
		t.SoftIRQ < o.SoftIRQ || t.Steal < o.Steal
}

// maxTicks returns the field-wise maximum of t and o.
func maxTicks(t, o Ticks) Ticks {
	m := t
	if o.User > m.User {
		m.User = o.User
	}
	if o.Nice > m.Nice {
		m.Nice = o.Nice
	}
	if o.System > m.System {
		m.System = o.System
	}
	if o.Idle > m.Idle {
		m.Idle = o.Idle
	}
	if o.IOWait > m.IOWait {
		m.IOWait = o.IOWait
	}
	if o.IRQ > m.IRQ {
		m.IRQ = o.IRQ
	}
	if o.SoftIRQ > m.SoftIRQ {
		m.SoftIRQ = o.SoftIRQ
	}
	if o.Steal > m.Steal {
		m.Steal = o.Steal
	}
	return m
}

// Aggregate sums a slice of virtual CPU ticks into the "cpu" line.
func Aggregate(vcpus []Ticks) Ticks {
	var agg Ticks
	for _, v := range vcpus {
		agg = agg.add(v)
	}
	return agg
}
