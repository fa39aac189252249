// Package metrics exposes prometheus.Collector implementations over the CPU
// accounting cache (C3) and the loaded device-cgroup classifier (C6), so a
// daemon deployment can scrape cache size, reap counts, and attach/detach
// counts the way any other ambient observability surface in this stack
// does.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/k3s-io/cgroupfs/internal/cpuacct"
	"github.com/k3s-io/cgroupfs/internal/devbpf"
)

const namespace = "cgroupfs"

// CacheCollector reports the live size and cumulative reap count of a
// cpuacct.Cache.
type CacheCollector struct {
	cache *cpuacct.Cache

	size   *prometheus.Desc
	reaped *prometheus.Desc
}

// NewCacheCollector wraps cache for registration with a prometheus.Registry.
func NewCacheCollector(cache *cpuacct.Cache) *CacheCollector {
	return &CacheCollector{
		cache: cache,
		size: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cpuacct_cache", "entries"),
			"Number of cgroups currently tracked in the CPU accounting cache.",
			nil, nil,
		),
		reaped: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cpuacct_cache", "reaped_total"),
			"Cumulative number of cache entries removed because their cgroup directory disappeared.",
			nil, nil,
		),
	}
}

func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.size
	ch <- c.reaped
}

func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(c.cache.Len()))
	ch <- prometheus.MustNewConstMetric(c.reaped, prometheus.CounterValue, float64(c.cache.ReapedTotal()))
}

// DeviceCgroupCollector reports the live attachment count and cumulative
// attach/detach totals of a devbpf.Handle.
type DeviceCgroupCollector struct {
	handle *devbpf.Handle

	attached    *prometheus.Desc
	attachTotal *prometheus.Desc
	detachTotal *prometheus.Desc
}

// NewDeviceCgroupCollector wraps handle for registration with a
// prometheus.Registry. handle may be nil, in which case Collect reports
// nothing: hosts without device-cgroup support simply export no series
// rather than a synthetic zero.
func NewDeviceCgroupCollector(handle *devbpf.Handle) *DeviceCgroupCollector {
	return &DeviceCgroupCollector{
		handle: handle,
		attached: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "devcgroup", "attached"),
			"Number of cgroup paths the device-cgroup classifier is currently attached to.",
			nil, nil,
		),
		attachTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "devcgroup", "attach_total"),
			"Cumulative number of successful device-cgroup attach calls.",
			nil, nil,
		),
		detachTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "devcgroup", "detach_total"),
			"Cumulative number of device-cgroup detach calls.",
			nil, nil,
		),
	}
}

func (d *DeviceCgroupCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- d.attached
	ch <- d.attachTotal
	ch <- d.detachTotal
}

func (d *DeviceCgroupCollector) Collect(ch chan<- prometheus.Metric) {
	if d.handle == nil {
		return
	}
	attachTotal, detachTotal := d.handle.Counts()
	ch <- prometheus.MustNewConstMetric(d.attached, prometheus.GaugeValue, float64(d.handle.AttachedCount()))
	ch <- prometheus.MustNewConstMetric(d.attachTotal, prometheus.CounterValue, float64(attachTotal))
	ch <- prometheus.MustNewConstMetric(d.detachTotal, prometheus.CounterValue, float64(detachTotal))
}
