package stats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors exposes the tracker's counters as Prometheus metrics. Each
// Collectors owns its registry so tests can build as many as they like.
type Collectors struct {
	registry *prometheus.Registry

	recordsReceived *prometheus.CounterVec
	recordsAccepted prometheus.Counter
	recordsDropped  *prometheus.CounterVec
	renders         prometheus.Counter
	reconnects      prometheus.Counter

	queueDepth    prometheus.Gauge
	bufferSamples prometheus.Gauge
	renderSeconds prometheus.Histogram
}

// NewCollectors creates and registers the instrumon metric set.
func NewCollectors() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		recordsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "instrumon_records_received_total",
				Help: "Decoded telemetry records delivered by each source",
			},
			[]string{"source"},
		),
		recordsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "instrumon_records_accepted_total",
			Help: "Records written to the channel buffers",
		}),
		recordsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "instrumon_records_dropped_total",
				Help: "Records discarded before reaching the buffers",
			},
			[]string{"reason"},
		),
		renders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "instrumon_renders_total",
			Help: "Completed render cycles",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "instrumon_source_reconnects_total",
			Help: "Source redial attempts",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "instrumon_queue_depth",
			Help: "Records waiting between ingestion and the pipeline",
		}),
		bufferSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "instrumon_buffer_samples",
			Help: "Live samples held per channel",
		}),
		renderSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "instrumon_render_cycle_seconds",
			Help:    "Time to extract and downsample every channel",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}
	c.registry.MustRegister(
		c.recordsReceived,
		c.recordsAccepted,
		c.recordsDropped,
		c.renders,
		c.reconnects,
		c.queueDepth,
		c.bufferSamples,
		c.renderSeconds,
	)
	return c
}

// Registry returns the registry the collectors are registered with.
func (c *Collectors) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveQueue records the current ingestion queue depth.
func (c *Collectors) ObserveQueue(depth int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(depth))
}

// ObserveBuffer records the live sample count per channel.
func (c *Collectors) ObserveBuffer(samples int) {
	if c == nil {
		return
	}
	c.bufferSamples.Set(float64(samples))
}

// ObserveRenderCycle records the duration of one render cycle.
func (c *Collectors) ObserveRenderCycle(d time.Duration) {
	if c == nil {
		return
	}
	c.renderSeconds.Observe(d.Seconds())
}

func (c *Collectors) received(source string) {
	if c == nil {
		return
	}
	c.recordsReceived.WithLabelValues(source).Inc()
}

func (c *Collectors) accepted() {
	if c == nil {
		return
	}
	c.recordsAccepted.Inc()
}

func (c *Collectors) dropped(reason string) {
	if c == nil {
		return
	}
	c.recordsDropped.WithLabelValues(reason).Inc()
}

func (c *Collectors) rendered() {
	if c == nil {
		return
	}
	c.renders.Inc()
}

func (c *Collectors) reconnected() {
	if c == nil {
		return
	}
	c.reconnects.Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collectors) Serve(ctx context.Context, addr string) error {
	if c == nil {
		return errors.New("metrics: collectors not initialised")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Printf("Metrics: serving Prometheus metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: listen %s: %w", addr, err)
	}
	return nil
}
