// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cocowh/iohook/pkg/logger"
)

const namespace = "iohook"

// MetricsHook is an iohook.Hook exporting transfer totals as Prometheus
// counters.
type MetricsHook struct {
	registry *prometheus.Registry

	readEvents  prometheus.Counter
	readBytes   prometheus.Counter
	writeEvents prometheus.Counter
	writeBytes  prometheus.Counter
	faults      prometheus.CounterFunc
}

type MetricsOption func(*metricsOptions)

type metricsOptions struct {
	registry      *prometheus.Registry
	constLabels   prometheus.Labels
	runtime       bool
	faultsCounter func() uint64
}

// WithRegistry registers the counters in reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) MetricsOption {
	return func(o *metricsOptions) { o.registry = reg }
}

// WithConstLabels attaches labels such as the service name to every series.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(o *metricsOptions) { o.constLabels = labels }
}

// WithRuntimeMetrics also exports Go runtime and process collectors.
func WithRuntimeMetrics() MetricsOption {
	return func(o *metricsOptions) { o.runtime = true }
}

// WithFaults exports a counter of contained hook faults read from fn,
// normally iohook.Faults.
func WithFaults(fn func() uint64) MetricsOption {
	return func(o *metricsOptions) { o.faultsCounter = fn }
}

func NewMetricsHook(opts ...MetricsOption) *MetricsHook {
	o := &metricsOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: o.constLabels,
		})
	}

	m := &MetricsHook{
		registry:    o.registry,
		readEvents:  counter("read_events_total", "Number of completed socket reads."),
		readBytes:   counter("read_bytes_total", "Bytes received across all sockets."),
		writeEvents: counter("write_events_total", "Number of completed socket writes."),
		writeBytes:  counter("write_bytes_total", "Bytes sent across all sockets."),
	}
	o.registry.MustRegister(m.readEvents, m.readBytes, m.writeEvents, m.writeBytes)

	if o.faultsCounter != nil {
		fn := o.faultsCounter
		m.faults = prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "hook_faults_total",
			Help:        "Hook panics contained by the dispatcher.",
			ConstLabels: o.constLabels,
		}, func() float64 { return float64(fn()) })
		o.registry.MustRegister(m.faults)
	}

	if o.runtime {
		o.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

func (m *MetricsHook) OnRead(n uint64) {
	m.readEvents.Inc()
	m.readBytes.Add(float64(n))
}

func (m *MetricsHook) OnWrite(n uint64) {
	m.writeEvents.Inc()
	m.writeBytes.Add(float64(n))
}

// Registry returns the registry holding the hook's counters.
func (m *MetricsHook) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry in the Prometheus text format.
func (m *MetricsHook) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the metrics endpoint on addr until ctx is cancelled.
func (m *MetricsHook) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return m.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener, which tests use to bind an
// ephemeral port.
func (m *MetricsHook) ServeListener(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Metrics server started on %s", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Metrics server shutdown: %v", err)
		}
		<-errCh
		logger.Infof("Metrics server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Errorf("Failed to serve metrics: %v", err)
		return err
	}
}
