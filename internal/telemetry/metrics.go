package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for dataset loading and evaluation.
type Metrics struct {
	// Dataset load latency by outcome
	LoadDuration *prometheus.HistogramVec

	// Long-form rows in the dataset currently served
	DatasetRecords prometheus.Gauge

	// Evaluations by endpoint
	Evaluations *prometheus.CounterVec

	// Selected identifiers absent from the dataset
	UnknownIdentifiers prometheus.Counter
}

// New registers the dashboard collectors, plus Go and process collectors, on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Metrics{
		LoadDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dashboard_dataset_load_duration_seconds",
			Help:    "Duration of dataset loads by outcome",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"outcome"}), // outcome: "ok", "error"

		DatasetRecords: f.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_dataset_records",
			Help: "Long-form records in the served dataset",
		}),

		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_evaluations_total",
			Help: "Filter and metrics evaluations by endpoint",
		}, []string{"endpoint"}),

		UnknownIdentifiers: f.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_unknown_identifiers_total",
			Help: "Selected identifiers that do not exist in the dataset",
		}),
	}
}

// ObserveLoad records one dataset load.
func (m *Metrics) ObserveLoad(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.LoadDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// SetRecords records the size of the dataset being served.
func (m *Metrics) SetRecords(n int) {
	if m != nil {
		m.DatasetRecords.Set(float64(n))
	}
}

// IncEvaluation counts one evaluation for endpoint.
func (m *Metrics) IncEvaluation(endpoint string) {
	if m != nil {
		m.Evaluations.WithLabelValues(endpoint).Inc()
	}
}

// AddUnknown counts identifiers that failed lookup.
func (m *Metrics) AddUnknown(n int) {
	if m != nil && n > 0 {
		m.UnknownIdentifiers.Add(float64(n))
	}
}
