// Package metrics implements Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons used as label values.
const (
	ReasonEtherType = "ethertype"
	ReasonFilter    = "filter"

	ReasonMalformed       = "malformed"
	ReasonOversized       = "oversized"
	ReasonTruncatedHeader = "truncated_header"
)

// Metrics holds the collectors of a single run. Each run gets its own
// registry so repeated runs in one process never share counters.
type Metrics struct {
	Registry *prometheus.Registry

	// FramesTotal counts record headers read from the trace
	FramesTotal prometheus.Counter

	// FramesExcludedTotal counts frames dropped on purpose
	FramesExcludedTotal *prometheus.CounterVec

	// FramesSkippedTotal counts frames dropped by a recoverable error
	FramesSkippedTotal *prometheus.CounterVec

	// PacketsDecodedTotal counts IPv4 packets handed to the aggregator
	PacketsDecodedTotal prometheus.Counter

	// WindowsTotal counts emitted feature vectors
	WindowsTotal prometheus.Counter

	// TraceTruncated is 1 when the trace ended inside a record
	TraceTruncated prometheus.Gauge
}

// New creates and registers the run collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		FramesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "synscope_frames_total",
			Help: "Total number of capture records read",
		}),
		FramesExcludedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synscope_frames_excluded_total",
				Help: "Total number of frames excluded before decoding",
			},
			[]string{"reason"},
		),
		FramesSkippedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synscope_frames_skipped_total",
				Help: "Total number of frames skipped because they could not be decoded",
			},
			[]string{"reason"},
		),
		PacketsDecodedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "synscope_packets_decoded_total",
			Help: "Total number of IPv4 packets decoded",
		}),
		WindowsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "synscope_windows_total",
			Help: "Total number of aggregation windows emitted",
		}),
		TraceTruncated: factory.NewGauge(prometheus.GaugeOpts{
			Name: "synscope_trace_truncated",
			Help: "Whether the trace ended inside a record (0=no, 1=yes)",
		}),
	}
}

// WriteTextfile writes the registry in the text exposition format, suitable
// for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
