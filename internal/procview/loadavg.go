package procview

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/k3s-io/cgroupfs/internal/hostproc"
)

// Kernel load-average decay constants, expressed as the fraction of the old
// average retained per 5-second sample (spec.md 4.4: 1884/2014/2037 over
// 2048, the same fixed-point constants linux/sched/loadavg.c uses).
const (
	loadSamplePeriod = 5 * time.Second
	decay1           = 1884.0 / 2048.0
	decay5           = 2014.0 / 2048.0
	decay15          = 2037.0 / 2048.0
)

// LoadState is one cgroup's EMA load-average accumulator.
type LoadState struct {
	mu                   sync.Mutex
	load1, load5, load15 float64
	lastSample           time.Time
}

// Sample folds an observation of active (running + uninterruptible) tasks
// into the EMA, decaying by the fraction of a 5-second period that has
// elapsed since the previous sample. The first call seeds all three
// averages with active rather than decaying from zero.
func (s *LoadState) Sample(active float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastSample.IsZero() {
		s.load1, s.load5, s.load15 = active, active, active
		s.lastSample = now
		return
	}
	ticks := now.Sub(s.lastSample).Seconds() / loadSamplePeriod.Seconds()
	if ticks <= 0 {
		return
	}
	s.load1 = ema(s.load1, active, decay1, ticks)
	s.load5 = ema(s.load5, active, decay5, ticks)
	s.load15 = ema(s.load15, active, decay15, ticks)
	s.lastSample = now
}

func ema(prev, active, decay, ticks float64) float64 {
	d := math.Pow(decay, ticks)
	return prev*d + active*(1-d)
}

// Snapshot returns the current 1/5/15-minute averages.
func (s *LoadState) Snapshot() (load1, load5, load15 float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load1, s.load5, s.load15
}

// LoadCache keys one LoadState per cgroup path, mirroring the accounting
// cache's "create on first touch" behavior, but without sharding: a load
// sampler runs at most once per five seconds per cgroup, far below the
// contention the CPU accounting cache is sharded against.
type LoadCache struct {
	mu      sync.Mutex
	entries map[string]*LoadState
}

// NewLoadCache returns an empty cache.
func NewLoadCache() *LoadCache {
	return &LoadCache{entries: make(map[string]*LoadState)}
}

// Get returns the LoadState for key, creating it if absent.
func (c *LoadCache) Get(key string) *LoadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[key]
	if !ok {
		s = &LoadState{}
		c.entries[key] = s
	}
	return s
}

// RenderLoadAvg synthesizes /proc/loadavg. When ema is false it proxies the
// host file unchanged, per the degradation rule for hosts that don't opt
// into cgroup-scoped load averages. When ema is true it samples the active
// task count now and renders from the EMA accumulator in state.
func RenderLoadAvg(ema bool, hostLoadAvgPath string, state *LoadState, procRoot string, cgroupProcs []int, now time.Time) ([]byte, error) {
	if !ema {
		return hostproc.ReadRaw(hostLoadAvgPath)
	}

	active, err := hostproc.CountActiveTasks(procRoot, cgroupProcs)
	if err != nil {
		return nil, err
	}
	state.Sample(float64(active), now)
	l1, l5, l15 := state.Snapshot()

	lastPid := 0
	for _, pid := range cgroupProcs {
		if pid > lastPid {
			lastPid = pid
		}
	}
	return []byte(fmt.Sprintf("%.2f %.2f %.2f %d/%d %d\n", l1, l5, l15, active, len(cgroupProcs), lastPid)), nil
}
