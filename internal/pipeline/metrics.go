package pipeline

import "firestige.xyz/synscope/internal/metrics"

// observe copies the run counters into the run's Prometheus collectors.
func observe(m *metrics.Metrics, res *Result) {
	st := res.Stats

	m.FramesTotal.Add(float64(st.Records))
	m.PacketsDecodedTotal.Add(float64(st.Decoded))
	m.WindowsTotal.Add(float64(res.Vectors))

	m.FramesExcludedTotal.WithLabelValues(metrics.ReasonEtherType).Add(float64(st.Excluded))
	m.FramesExcludedTotal.WithLabelValues(metrics.ReasonFilter).Add(float64(st.FilterRejected))

	m.FramesSkippedTotal.WithLabelValues(metrics.ReasonMalformed).Add(float64(st.Malformed))
	m.FramesSkippedTotal.WithLabelValues(metrics.ReasonOversized).Add(float64(st.Oversized))
	m.FramesSkippedTotal.WithLabelValues(metrics.ReasonTruncatedHeader).Add(float64(st.TruncatedHeader))

	if res.Truncated {
		m.TraceTruncated.Set(1)
	} else {
		m.TraceTruncated.Set(0)
	}
}
