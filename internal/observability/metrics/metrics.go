package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// LeadMetrics exposes counters/histograms for lead lifecycle operations.
type LeadMetrics struct {
	createdTotal      *prometheus.CounterVec
	statusChanges     *prometheus.CounterVec
	notesTotal        prometheus.Counter
	bulkIDs           *prometheus.CounterVec
	operationTotal    *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	rateLimited       prometheus.Counter
	alertsTotal       *prometheus.CounterVec
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		createdTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realty",
			Subsystem: "leads",
			Name:      "created_total",
			Help:      "Leads created, by intake source",
		}, []string{"source"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realty",
			Subsystem: "leads",
			Name:      "status_changes_total",
			Help:      "Pipeline status changes made through the status endpoint",
		}, []string{"from", "to"}),
		notesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "realty",
			Subsystem: "leads",
			Name:      "notes_appended_total",
			Help:      "Notes appended to leads",
		}),
		bulkIDs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realty",
			Subsystem: "leads",
			Name:      "bulk_update_ids_total",
			Help:      "Lead ids passed to bulk updates, split into requested and matched",
		}, []string{"kind"}),
		operationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realty",
			Subsystem: "leads",
			Name:      "operations_total",
			Help:      "Lead service operations by outcome",
		}, []string{"operation", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "realty",
			Subsystem: "leads",
			Name:      "operation_duration_seconds",
			Help:      "Latency of lead service operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "realty",
			Subsystem: "intake",
			Name:      "rate_limited_total",
			Help:      "Public intake requests rejected by the rate limiter",
		}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realty",
			Subsystem: "intake",
			Name:      "alerts_total",
			Help:      "New lead alert emails by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.createdTotal,
		m.statusChanges,
		m.notesTotal,
		m.bulkIDs,
		m.operationTotal,
		m.operationDuration,
		m.rateLimited,
		m.alertsTotal,
	)
	return m
}

func (m *LeadMetrics) ObserveCreated(source string) {
	if m == nil {
		return
	}
	m.createdTotal.WithLabelValues(source).Inc()
}

func (m *LeadMetrics) ObserveStatusChange(from, to string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(from, to).Inc()
}

func (m *LeadMetrics) ObserveNoteAppended() {
	if m == nil {
		return
	}
	m.notesTotal.Inc()
}

func (m *LeadMetrics) ObserveBulkUpdate(requested, matched int) {
	if m == nil {
		return
	}
	m.bulkIDs.WithLabelValues("requested").Add(float64(requested))
	m.bulkIDs.WithLabelValues("matched").Add(float64(matched))
}

func (m *LeadMetrics) ObserveOperation(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.operationTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *LeadMetrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *LeadMetrics) ObserveAlert(sent bool) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(strconv.FormatBool(sent)).Inc()
}
