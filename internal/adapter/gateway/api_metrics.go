package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"suitcase-link/internal/domain"
)

// Metrics holds the Prometheus registry served on /metrics. Event counters
// are driven by the bus; session gauges are read from the snapshot at
// scrape time.
type Metrics struct {
	registry *prometheus.Registry

	ReadingsTotal        prometheus.Counter
	AlertsTotal          prometheus.Counter
	TransportErrorsTotal prometheus.Counter
	StateChangesTotal    prometheus.Counter
}

// NewMetrics registers the suitcase collectors on a private registry and
// subscribes the counters to bus. A nil bus leaves the counters at zero; a
// nil session omits the snapshot gauges.
func NewMetrics(bus domain.EventBus, sess SessionAPI, startTime time.Time) *Metrics {
	newCounter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	m := &Metrics{
		registry:             prometheus.NewRegistry(),
		ReadingsTotal:        newCounter("suitcase_readings_total", "Readings accepted while connected."),
		AlertsTotal:          newCounter("suitcase_alerts_total", "Overweight alerts fired."),
		TransportErrorsTotal: newCounter("suitcase_transport_errors_total", "Transport failures reported by sources."),
		StateChangesTotal:    newCounter("suitcase_state_changes_total", "Connection state transitions."),
	}
	m.registry.MustRegister(
		m.ReadingsTotal, m.AlertsTotal, m.TransportErrorsTotal, m.StateChangesTotal,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "suitcase_uptime_seconds",
			Help: "Seconds since the gateway started.",
		}, func() float64 { return time.Since(startTime).Seconds() }),
		collectors.NewGoCollector(),
	)
	if sess != nil {
		m.registry.MustRegister(newSnapshotCollector(sess))
	}

	if bus == nil {
		return m
	}
	counters := map[domain.EventType]prometheus.Counter{
		domain.EventReading:        m.ReadingsTotal,
		domain.EventAlertFired:     m.AlertsTotal,
		domain.EventTransportError: m.TransportErrorsTotal,
		domain.EventStateChanged:   m.StateChangesTotal,
	}
	for typ, c := range counters {
		bus.Subscribe(typ, func(context.Context, domain.Event) { c.Inc() })
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// snapshotCollector exports the live session snapshot as gauges.
type snapshotCollector struct {
	session SessionAPI

	connected *prometheus.Desc
	threshold *prometheus.Desc
	weight    *prometheus.Desc
	overLimit *prometheus.Desc
	rssi      *prometheus.Desc
}

func newSnapshotCollector(sess SessionAPI) *snapshotCollector {
	return &snapshotCollector{
		session: sess,
		connected: prometheus.NewDesc("suitcase_connected",
			"Whether a measurement source is connected.", nil, nil),
		threshold: prometheus.NewDesc("suitcase_threshold_pounds",
			"Allowance for the selected class of travel.", []string{"class"}, nil),
		weight: prometheus.NewDesc("suitcase_weight_pounds",
			"Latest reading normalized to pounds.", []string{"source"}, nil),
		overLimit: prometheus.NewDesc("suitcase_over_limit",
			"Whether the latest reading exceeds the allowance.", nil, nil),
		rssi: prometheus.NewDesc("suitcase_rssi_dbm",
			"Signal strength of the connected peripheral.", nil, nil),
	}
}

func (c *snapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connected
	ch <- c.threshold
	ch <- c.weight
	ch <- c.overLimit
	ch <- c.rssi
}

// Collect emits the weight and RSSI gauges only while a value is known.
func (c *snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.session.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, boolGauge(snap.State.Is(domain.StateConnected)))
	ch <- prometheus.MustNewConstMetric(c.threshold, prometheus.GaugeValue, snap.Threshold, string(snap.Class))
	if snap.Latest != nil {
		ch <- prometheus.MustNewConstMetric(c.weight, prometheus.GaugeValue, snap.Latest.Pounds(), string(snap.Latest.Source))
		ch <- prometheus.MustNewConstMetric(c.overLimit, prometheus.GaugeValue, boolGauge(snap.OverLimit))
	}
	if snap.RSSI != nil {
		ch <- prometheus.MustNewConstMetric(c.rssi, prometheus.GaugeValue, float64(*snap.RSSI))
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// metricsHandler returns an HTTP handler for GET /metrics.
func metricsHandler(metrics *Metrics) http.HandlerFunc {
	h := metrics.Handler()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(w, r)
	}
}
