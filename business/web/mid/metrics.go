package mid

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ardanlabs/ledger/foundation/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics represents the set of request collectors the middleware updates.
var metrics = struct {
	requests *prometheus.CounterVec
	errors   prometheus.Counter
	panics   prometheus.Counter
	duration *prometheus.HistogramVec
}{
	requests: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests by method and status code or error",
	}, []string{"method", "code"}),
	errors: promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "http",
		Name:      "errors_total",
		Help:      "Total number of requests that returned an error",
	}),
	panics: promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "http",
		Name:      "panics_total",
		Help:      "Total number of requests that panicked",
	}),
	duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ledger",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"}),
}

// Metrics updates the prometheus collectors for every request.
func Metrics() web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			timer := prometheus.NewTimer(metrics.duration.WithLabelValues(r.Method))
			defer timer.ObserveDuration()

			// Call the next handler.
			err := handler(ctx, w, r)

			code := "error"
			switch v, verr := web.GetValues(ctx); {
			case err != nil:
				metrics.errors.Inc()
			case verr == nil:
				code = strconv.Itoa(v.StatusCode)
			}
			metrics.requests.WithLabelValues(r.Method, code).Inc()

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return m
}
