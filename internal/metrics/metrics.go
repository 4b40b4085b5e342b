package metrics

import (
	"FlowTagger/internal/model"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowtagger"

// Metrics groups the collectors of one process on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	LinesRead     prometheus.Counter
	LinesSkipped  prometheus.Counter
	Classified    *prometheus.CounterVec
	LookupEntries prometheus.Gauge

	reportTags          *prometheus.GaugeVec
	reportPortProtocols *prometheus.GaugeVec
	reportsReceived     prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      "Flow log lines read.",
		}),
		LinesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_skipped_total",
			Help:      "Flow log lines skipped for having too few fields.",
		}),
		Classified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_classified_total",
			Help:      "Classified flow log records by lookup result.",
		}, []string{"result"}),
		LookupEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lookup_entries",
			Help:      "Distinct (port, protocol) keys in the lookup table.",
		}),
		reportTags: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_tag_count",
			Help:      "Tag counts of the latest received report.",
		}, []string{"tag"}),
		reportPortProtocols: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_port_protocol_count",
			Help:      "Port/protocol counts of the latest received report.",
		}, []string{"port", "protocol"}),
		reportsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_received_total",
			Help:      "Reports received from NATS.",
		}),
	}

	m.Registry.MustRegister(
		m.LinesRead,
		m.LinesSkipped,
		m.Classified,
		m.LookupEntries,
		m.reportTags,
		m.reportPortProtocols,
		m.reportsReceived,
	)
	return m
}

// ObserveResult counts one classified record as tagged or untagged.
func (m *Metrics) ObserveResult(res model.ClassificationResult) {
	if res.Tag == model.Untagged {
		m.Classified.WithLabelValues("untagged").Inc()
		return
	}
	m.Classified.WithLabelValues("tagged").Inc()
}

// ObserveReport replaces the report gauges with the counts of r.
// Label values must be valid UTF-8; invalid bytes become U+FFFD and colliding series are summed.
func (m *Metrics) ObserveReport(r *model.Report) {
	m.reportsReceived.Inc()
	m.reportTags.Reset()
	m.reportPortProtocols.Reset()
	for tag, n := range r.Tags {
		m.reportTags.WithLabelValues(labelValue(tag)).Add(float64(n))
	}
	for key, n := range r.PortProtocols {
		m.reportPortProtocols.WithLabelValues(labelValue(key.Port), labelValue(key.Protocol)).Add(float64(n))
	}
}

func labelValue(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// WriteTextfile writes the registry in the text exposition format for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
