package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the availability engine.
type SchedulingMetrics struct {
	validationsTotal    *prometheus.CounterVec
	suggestionsReturned prometheus.Histogram
	nextSlotDaysScanned prometheus.Histogram
	repositoryErrors    *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		validationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inkbook",
			Subsystem: "scheduling",
			Name:      "validations_total",
			Help:      "Booking validations by outcome",
		}, []string{"outcome"}),
		suggestionsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "inkbook",
			Subsystem: "scheduling",
			Name:      "suggestions_returned",
			Help:      "Number of alternative times returned per request",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		}),
		nextSlotDaysScanned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "inkbook",
			Subsystem: "scheduling",
			Name:      "next_slot_days_scanned",
			Help:      "Calendar days scanned by next-available-slot searches",
			Buckets:   []float64{1, 2, 3, 7, 14, 30, 60, 90},
		}),
		repositoryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inkbook",
			Subsystem: "scheduling",
			Name:      "repository_errors_total",
			Help:      "Appointment repository failures seen by the engine",
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.validationsTotal, m.suggestionsReturned, m.nextSlotDaysScanned, m.repositoryErrors)
	return m
}

func (m *SchedulingMetrics) ObserveValidation(valid bool) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if valid {
		outcome = "accepted"
	}
	m.validationsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveSuggestions(count int) {
	if m == nil {
		return
	}
	m.suggestionsReturned.Observe(float64(count))
}

func (m *SchedulingMetrics) ObserveDaysScanned(days int) {
	if m == nil {
		return
	}
	m.nextSlotDaysScanned.Observe(float64(days))
}

func (m *SchedulingMetrics) ObserveRepositoryError(operation string) {
	if m == nil {
		return
	}
	m.repositoryErrors.WithLabelValues(operation).Inc()
}
