package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"echobench/internal/runner"
)

const namespace = "echobench"

// Collector exposes benchmark progress as Prometheus metrics. It implements
// runner.Observer.
type Collector struct {
	Registry *prometheus.Registry

	completed *prometheus.CounterVec
	failures  *prometheus.CounterVec
	misses    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

func NewCollector() *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_completed_total",
			Help:      "Requests resolved, with or without a latency sample.",
		}, []string{"transport"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_failures_total",
			Help:      "Requests resolved without a latency sample, by kind.",
		}, []string{"transport", "kind"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "correlation_misses_total",
			Help:      "Responses that matched no outstanding request.",
		}, []string{"transport"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "latency_milliseconds",
			Help:      "Round-trip latency of matched responses.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 16),
		}, []string{"transport"}),
	}
	c.Registry.MustRegister(c.completed, c.failures, c.misses, c.latency)
	return c
}

func (c *Collector) ObserveSample(transport string, latencyMillis float64) {
	c.completed.WithLabelValues(transport).Inc()
	c.latency.WithLabelValues(transport).Observe(latencyMillis)
}

func (c *Collector) ObserveFailure(transport string, kind runner.FailureKind) {
	c.completed.WithLabelValues(transport).Inc()
	c.failures.WithLabelValues(transport, kind.String()).Inc()
}

func (c *Collector) ObserveMiss(transport string) {
	c.misses.WithLabelValues(transport).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	log.Infof("serving metrics on http://%s/metrics", addr)
}
