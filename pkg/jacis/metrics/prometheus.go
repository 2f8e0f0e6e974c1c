package metrics

import (
	"fmt"
	"io"
)

// PrometheusExporter renders a Collector in Prometheus text exposition
// format, grounded on the teacher's pkg/metrics.PrometheusExporter
// (writeCounter/writeGauge helper shape), minus any Prometheus client
// library — the teacher's go.mod carries none either, so this stays a
// hand-rolled text writer just like it does.
type PrometheusExporter struct {
	collector *Collector
	namespace string
}

// NewPrometheusExporter creates an exporter for collector under the given
// metric namespace prefix (e.g. "jacis").
func NewPrometheusExporter(collector *Collector, namespace string) *PrometheusExporter {
	if namespace == "" {
		namespace = "jacis"
	}
	return &PrometheusExporter{collector: collector, namespace: namespace}
}

// WriteMetrics writes every counter and the commit-latency histogram in
// Prometheus text format to w.
func (pe *PrometheusExporter) WriteMetrics(w io.Writer) error {
	snap := pe.collector.Snapshot()

	if err := pe.writeGauge(w, "uptime_seconds", "Engine uptime in seconds", snap.UptimeSeconds); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "prepares_total", "Total number of store prepares", snap.PrepareTotal); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "prepares_failed_total", "Total number of failed prepares", snap.PrepareFailedTotal); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "commits_total", "Total number of committed transactions", snap.CommitTotal); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "commits_failed_total", "Total number of failed commits", snap.CommitFailedTotal); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "rollbacks_total", "Total number of rolled-back transactions", snap.RollbackTotal); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "stale_object_total", "Total number of StaleObject conflicts", snap.StaleObjectTotal); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "unique_index_violation_total", "Total number of unique index violations", snap.UniqueViolationTotal); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "modification_veto_total", "Total number of modification vetoes", snap.VetoTotal); err != nil {
		return err
	}
	return pe.writeHistogram(w, "commit_duration_seconds", "Prepare-to-commit latency histogram", pe.collector.commitTimings)
}

func (pe *PrometheusExporter) writeCounter(w io.Writer, name, help string, value uint64) error {
	full := pe.namespace + "_" + name
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", full, help, full, full, value); err != nil {
		return err
	}
	return nil
}

func (pe *PrometheusExporter) writeGauge(w io.Writer, name, help string, value float64) error {
	full := pe.namespace + "_" + name
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n", full, help, full, full, value); err != nil {
		return err
	}
	return nil
}

func (pe *PrometheusExporter) writeHistogram(w io.Writer, name, help string, h *TimingHistogram) error {
	full := pe.namespace + "_" + name
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", full, help, full); err != nil {
		return err
	}
	buckets := []struct {
		le    string
		count uint64
	}{
		{"0.001", h.bucket0_1ms},
		{"0.01", h.bucket0_1ms + h.bucket1_10ms},
		{"0.1", h.bucket0_1ms + h.bucket1_10ms + h.bucket10_100ms},
		{"1", h.bucket0_1ms + h.bucket1_10ms + h.bucket10_100ms + h.bucket100_1000ms},
	}
	total := h.bucket0_1ms + h.bucket1_10ms + h.bucket10_100ms + h.bucket100_1000ms + h.bucket1000ms
	for _, b := range buckets {
		if _, err := fmt.Fprintf(w, "%s_bucket{le=\"%s\"} %d\n", full, b.le, b.count); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", full, total); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s_count %d\n", full, total); err != nil {
		return err
	}
	return nil
}
