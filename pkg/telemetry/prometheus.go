// Package telemetry implements the two HTTP sinks spec.md §6 describes:
// a Prometheus text exporter and a JSON stats endpoint, both reading the
// Stats Aggregator's read-only Snapshot.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowforge/cgnat/pkg/stats"
)

// metricDesc pairs one spec.md §6 literal metric name with its HELP text,
// value kind, and how to read it off a Snapshot.
type metricDesc struct {
	name string
	help string
	kind prometheus.ValueType
	val  func(stats.Snapshot) float64
}

var metricDescs = []metricDesc{
	{"cgnat_packets_received_total", "Total packets received", prometheus.CounterValue, func(s stats.Snapshot) float64 { return float64(s.PacketsRx) }},
	{"cgnat_packets_transmitted_total", "Total packets transmitted", prometheus.CounterValue, func(s stats.Snapshot) float64 { return float64(s.PacketsTx) }},
	{"cgnat_packets_dropped_total", "Total packets dropped", prometheus.CounterValue, func(s stats.Snapshot) float64 { return float64(s.PacketsDropped) }},
	{"cgnat_bytes_received_total", "Total bytes received", prometheus.CounterValue, func(s stats.Snapshot) float64 { return float64(s.BytesRx) }},
	{"cgnat_bytes_transmitted_total", "Total bytes transmitted", prometheus.CounterValue, func(s stats.Snapshot) float64 { return float64(s.BytesTx) }},
	{"cgnat_nat_sessions_active", "Currently active NAT sessions", prometheus.GaugeValue, func(s stats.Snapshot) float64 { return float64(s.SessionsActive) }},
	{"cgnat_nat_sessions_created_total", "Total NAT sessions created", prometheus.CounterValue, func(s stats.Snapshot) float64 { return float64(s.SessionsCreated) }},
	{"cgnat_nat_sessions_expired_total", "Total NAT sessions expired", prometheus.CounterValue, func(s stats.Snapshot) float64 { return float64(s.SessionsExpired) }},
	{"cgnat_port_allocation_failures_total", "Total port allocation failures", prometheus.CounterValue, func(s stats.Snapshot) float64 { return float64(s.PortAllocationFailures) }},
	{"cgnat_packet_latency_microseconds_avg", "Average fast-path packet latency in microseconds", prometheus.GaugeValue, func(s stats.Snapshot) float64 { return s.AvgLatencyMicros }},
	{"cgnat_packet_latency_microseconds_max", "Maximum fast-path packet latency in microseconds", prometheus.GaugeValue, func(s stats.Snapshot) float64 { return s.MaxLatencyMicros }},
}

// collector adapts the Stats Aggregator to prometheus.Collector, computing
// a fresh Snapshot on every scrape rather than caching, so counters never
// appear to stall between collections.
type collector struct {
	agg   *stats.Aggregator
	descs []*prometheus.Desc
}

func newCollector(agg *stats.Aggregator) *collector {
	descs := make([]*prometheus.Desc, len(metricDescs))
	for i, m := range metricDescs {
		descs[i] = prometheus.NewDesc(m.name, m.help, nil, nil)
	}
	return &collector{agg: agg, descs: descs}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.agg.Snapshot()
	for i, m := range metricDescs {
		ch <- prometheus.MustNewConstMetric(c.descs[i], m.kind, m.val(snap))
	}
}

// PrometheusHandler returns an http.Handler serving the text exposition
// format over a dedicated registry holding only the eleven metrics
// spec.md §6 names — no Go runtime/process metrics mixed in.
func PrometheusHandler(agg *stats.Aggregator) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(newCollector(agg))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
