package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/deemkeen/formgate/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	authOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formgate_auth_outcomes_total",
			Help: "Authentication gate outcomes",
		},
		[]string{"outcome"},
	)
	attemptFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "formgate_attempt_failures_total",
			Help: "Failed credential checks that were counted against an address",
		},
	)
	persistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "formgate_persist_errors_total",
			Help: "Credential record writes that failed",
		},
	)
	requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formgate_requests_total",
			Help: "HTTP requests by method and status",
		},
		[]string{"method", "status"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "formgate_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// RecordOutcome counts one authentication gate decision
func RecordOutcome(o domain.AuthOutcome) {
	authOutcomes.WithLabelValues(o.String()).Inc()
}

func RecordAttemptFailure() {
	attemptFailures.Inc()
}

func RecordPersistError() {
	persistErrors.Inc()
}

// RecordRequest counts a finished HTTP request
func RecordRequest(method string, status int, elapsed time.Duration) {
	requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Serve exposes /metrics on addr until ctx is done. It is kept off the main
// listener so scrapes never go through the authentication gate.
func Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("Metrics server stopped: %v", err)
	}
}
