package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var documentsUploaded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "documents_uploaded_total",
	Help: "Documents accepted by the upload endpoint",
})

var documentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "documents_processed_total",
	Help: "Processing outcomes of consumed queue events",
}, []string{"outcome"})

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "search_cache_lookups_total",
	Help: "Result cache lookups labelled hit/miss/error",
}, []string{"result"})

var eventsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "processor_events_in_flight",
	Help: "Queue events fetched but not yet acked",
})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementDocumentsUploaded() {
	documentsUploaded.Inc()
}

func CaptureProcessingOutcome(outcome string) {
	documentsProcessed.WithLabelValues(outcome).Inc()
}

func CaptureCacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}

func IncrementEventsInFlight() {
	eventsInFlight.Inc()
}

func DecrementEventsInFlight() {
	eventsInFlight.Dec()
}

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}
