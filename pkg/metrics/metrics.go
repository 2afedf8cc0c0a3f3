// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exports capture counters to Prometheus.
package metrics

import (
	"math"
	"net/http"

	"github.com/Thermoquad/dmmstat/pkg/capture"
	"github.com/Thermoquad/dmmstat/pkg/ch9325"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dmmstat"

// Collector records capture events as Prometheus metrics. It implements
// capture.Observer.
type Collector struct {
	capture.NopObserver

	registry *prometheus.Registry

	packets       *prometheus.CounterVec
	frames        prometheus.Counter
	anomalies     *prometheus.CounterVec
	resyncs       prometheus.Counter
	resyncLimits  prometheus.Counter
	timeouts      prometheus.Counter
	transportErrs prometheus.Counter
	streamDropped prometheus.Counter
	value         *prometheus.GaugeVec
	overflow      prometheus.Gauge
	lastFrame     prometheus.Gauge

	unit string
}

var _ capture.Observer = (*Collector)(nil)

// NewCollector creates a collector with its own registry, which also
// carries the Go runtime and process collectors
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "Adapter packets received, by kind.",
		}, []string{"kind"}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames reassembled and decoded.",
		}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_anomalies_total",
			Help:      "Frame anomalies reported by validation, by type.",
		}, []string{"type"}),
		resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resyncs_total",
			Help:      "Bytes dropped to regain frame alignment.",
		}),
		resyncLimits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resync_limit_events_total",
			Help:      "Resync streaks that reached the configured limit.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_timeouts_total",
			Help:      "Reads that returned no packet within the timeout.",
		}),
		transportErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Transient read failures.",
		}),
		streamDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_dropped_total",
			Help:      "Readings discarded for slow websocket clients.",
		}),
		value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading_value",
			Help:      "Last finite reading in base units.",
		}, []string{"unit"}),
		overflow: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading_overflow",
			Help:      "1 while the meter shows OL.",
		}),
		lastFrame: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_frame_timestamp_seconds",
			Help:      "Unix time of the last decoded frame.",
		}),
	}

	c.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		c.packets,
		c.frames,
		c.anomalies,
		c.resyncs,
		c.resyncLimits,
		c.timeouts,
		c.transportErrs,
		c.streamDropped,
		c.value,
		c.overflow,
		c.lastFrame,
	)
	return c
}

// Registry returns the collector's registry, for registering extra metrics
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RegisterGaugeFunc exposes a value computed at scrape time
func (c *Collector) RegisterGaugeFunc(name, help string, fn func() float64) error {
	return c.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

func (c *Collector) PacketReceived(p ch9325.Packet) {
	if p.HasData() {
		c.packets.WithLabelValues("data").Inc()
	} else {
		c.packets.WithLabelValues("idle").Inc()
	}
}

func (c *Collector) FrameDecoded(s capture.Sample) {
	c.frames.Inc()
	c.lastFrame.Set(float64(s.Time.UnixNano()) / 1e9)
	for _, a := range s.Anomalies {
		c.anomalies.WithLabelValues(a.Type.String()).Inc()
	}

	m := s.Measurement
	v := m.ValueUnscaled()
	if m.Overflow() || math.IsInf(v, 0) || math.IsNaN(v) {
		c.overflow.Set(1)
		return
	}
	c.overflow.Set(0)

	// only the current unit is exported
	unit := m.Unit().String()
	if unit != c.unit {
		c.value.Reset()
		c.unit = unit
	}
	c.value.WithLabelValues(unit).Set(v)
}

func (c *Collector) Resync()              { c.resyncs.Inc() }
func (c *Collector) ResyncLimit(int)      { c.resyncLimits.Inc() }
func (c *Collector) Timeout()             { c.timeouts.Inc() }
func (c *Collector) TransportError(error) { c.transportErrs.Inc() }

// StreamDropped counts a reading discarded by the websocket hub
func (c *Collector) StreamDropped() { c.streamDropped.Inc() }
