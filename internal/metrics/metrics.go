// Package metrics exposes the router's Prometheus instrumentation and
// the optional /metrics listener.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/semroute/semroute/internal/logging"
)

// Metrics holds the router's instrument set. A nil *Metrics is valid and
// records nothing, so instrumentation points need no guards.
type Metrics struct {
	registry      *prometheus.Registry
	toolCalls     *prometheus.CounterVec
	searches      prometheus.Counter
	upstreamLoads *prometheus.CounterVec
	catalogTools  prometheus.Gauge
}

// New builds the instrument set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "semroute_tool_calls_total",
			Help: "Tool calls proxied to upstreams, by upstream and status.",
		}, []string{"upstream", "status"}),
		searches: factory.NewCounter(prometheus.CounterOpts{
			Name: "semroute_searches_total",
			Help: "search_tools invocations served.",
		}),
		upstreamLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "semroute_upstream_loads_total",
			Help: "Upstream load attempts, by status.",
		}, []string{"status"}),
		catalogTools: factory.NewGauge(prometheus.GaugeOpts{
			Name: "semroute_catalog_tools",
			Help: "Tools currently in the embedding index.",
		}),
	}
}

// ObserveToolCall records one proxied tool call.
func (m *Metrics) ObserveToolCall(upstream, status string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(upstream, status).Inc()
}

// ObserveSearch records one search_tools invocation.
func (m *Metrics) ObserveSearch() {
	if m == nil {
		return
	}
	m.searches.Inc()
}

// ObserveUpstreamLoad records one load attempt outcome.
func (m *Metrics) ObserveUpstreamLoad(status string) {
	if m == nil {
		return
	}
	m.upstreamLoads.WithLabelValues(status).Inc()
}

// SetCatalogSize records the current index size.
func (m *Metrics) SetCatalogSize(n int) {
	if m == nil {
		return
	}
	m.catalogTools.Set(float64(n))
}

// Serve runs the /metrics listener until the context is cancelled. It
// blocks; run it on its own goroutine.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if m == nil || addr == "" {
		return nil
	}
	log := logging.For(logger, "metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listener started", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
