// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics defines the Prometheus collectors the rest and gateway
// packages report to.
//
// Collectors are registered on the registerer passed to [New], never on
// the global default, so tests and multi-client processes stay isolated.
// Every method is safe on a nil *Metrics and does nothing, which is how
// components run when no metrics are configured.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rate limit scopes used as the "scope" label.
const (
	ScopeGlobal = "global"
	ScopeRoute  = "route"
)

// Metrics holds the collectors for one client.
type Metrics struct {
	RESTRequests         *prometheus.CounterVec
	RateLimitWait        *prometheus.HistogramVec
	RateLimited          *prometheus.CounterVec
	GatewayPackets       *prometheus.CounterVec
	GatewayReconnects    prometheus.Counter
	SessionInvalidations prometheus.Counter
	HeartbeatLatency     prometheus.Histogram
}

// New creates the collectors and registers them on registerer. A nil
// registerer creates working but unregistered collectors. Registering
// twice on the same registerer panics, as promauto does.
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		RESTRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rapture_rest_requests_total",
			Help: "REST responses received, by route and HTTP status.",
		}, []string{"route", "status"}),
		RateLimitWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rapture_rest_rate_limit_wait_seconds",
			Help:    "Time requests spent waiting on rate limit buckets before sending.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"scope"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rapture_rest_rate_limited_total",
			Help: "429 responses received, by limit scope.",
		}, []string{"scope"}),
		GatewayPackets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rapture_gateway_packets_total",
			Help: "Gateway packets received, by opcode.",
		}, []string{"op"}),
		GatewayReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "rapture_gateway_reconnects_total",
			Help: "Gateway connections re-established after a close.",
		}),
		SessionInvalidations: factory.NewCounter(prometheus.CounterOpts{
			Name: "rapture_gateway_session_invalidations_total",
			Help: "Gateway sessions invalidated by the server.",
		}),
		HeartbeatLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rapture_gateway_heartbeat_latency_seconds",
			Help:    "Time between sending a heartbeat and receiving its ack.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
	}
}

// ObserveRequest counts one REST response.
func (m *Metrics) ObserveRequest(route string, status int) {
	if m == nil {
		return
	}
	m.RESTRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// ObserveRateLimitWait records a preemptive wait on a bucket.
func (m *Metrics) ObserveRateLimitWait(scope string, wait time.Duration) {
	if m == nil {
		return
	}
	m.RateLimitWait.WithLabelValues(scope).Observe(wait.Seconds())
}

// IncRateLimited counts one 429 response.
func (m *Metrics) IncRateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(scope).Inc()
}

// IncPacket counts one inbound gateway packet.
func (m *Metrics) IncPacket(op string) {
	if m == nil {
		return
	}
	m.GatewayPackets.WithLabelValues(op).Inc()
}

// IncReconnect counts one gateway reconnect.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	m.GatewayReconnects.Inc()
}

// IncSessionInvalidation counts one invalidated session.
func (m *Metrics) IncSessionInvalidation() {
	if m == nil {
		return
	}
	m.SessionInvalidations.Inc()
}

// ObserveHeartbeatLatency records one heartbeat round trip.
func (m *Metrics) ObserveHeartbeatLatency(latency time.Duration) {
	if m == nil {
		return
	}
	m.HeartbeatLatency.Observe(latency.Seconds())
}
