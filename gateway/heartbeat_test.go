// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rapture-chat/rapture/lib/clock"
	"github.com/rapture-chat/rapture/lib/testutil"
	"github.com/rapture-chat/rapture/metrics"
)

type heartbeatProbe struct {
	heartbeat *heartbeater
	clock     *clock.FakeClock
	sent      chan struct{}
	zombie    chan struct{}
}

func startHeartbeat(t *testing.T, maxMissed int, m *metrics.Metrics) *heartbeatProbe {
	t.Helper()
	fakeClock := clock.Fake(testEpoch)
	probe := &heartbeatProbe{
		clock:  fakeClock,
		sent:   make(chan struct{}, 16),
		zombie: make(chan struct{}),
	}
	probe.heartbeat = newHeartbeater(time.Second, time.Second, maxMissed, fakeClock, discardLogger(), m)
	probe.heartbeat.send = func(context.Context) error {
		probe.sent <- struct{}{}
		return nil
	}
	probe.heartbeat.onZombie = func() { close(probe.zombie) }

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go probe.heartbeat.run(ctx)
	return probe
}

// tick advances to the next scheduled beat.
func (p *heartbeatProbe) tick(d time.Duration) {
	p.clock.WaitForTimers(1)
	p.clock.Advance(d)
}

func TestHeartbeater_ZombieAfterMaxMissed(t *testing.T) {
	probe := startHeartbeat(t, 2, nil)

	probe.tick(time.Second)
	testutil.RequireReceive(t, probe.sent, waitTimeout, "first beat")
	probe.tick(time.Second)
	testutil.RequireReceive(t, probe.sent, waitTimeout, "second beat, one miss")
	if got := probe.heartbeat.missedCount(); got != 1 {
		t.Errorf("missed = %d, want 1", got)
	}

	probe.tick(time.Second)
	testutil.RequireClosed(t, probe.zombie, waitTimeout, "waiting for zombie detection")
	testutil.RequireNoReceive(t, probe.sent, 50*time.Millisecond, "beat sent on a zombie connection")
}

func TestHeartbeater_AckResetsMisses(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	probe := startHeartbeat(t, 2, m)

	probe.tick(time.Second)
	testutil.RequireReceive(t, probe.sent, waitTimeout)
	probe.tick(time.Second)
	testutil.RequireReceive(t, probe.sent, waitTimeout)

	// Latency runs from the first unacknowledged beat.
	probe.clock.WaitForTimers(1)
	probe.clock.Advance(250 * time.Millisecond)
	probe.heartbeat.ack()
	if got := probe.heartbeat.missedCount(); got != 0 {
		t.Errorf("missed after ack = %d, want 0", got)
	}

	probe.tick(750 * time.Millisecond)
	testutil.RequireReceive(t, probe.sent, waitTimeout, "beat after ack")
	probe.tick(time.Second)
	testutil.RequireReceive(t, probe.sent, waitTimeout, "one miss is tolerated")

	select {
	case <-probe.zombie:
		t.Fatal("declared a zombie despite the ack")
	default:
	}

	expected := `
# HELP rapture_gateway_heartbeat_latency_seconds Time between sending a heartbeat and receiving its ack.
# TYPE rapture_gateway_heartbeat_latency_seconds histogram
rapture_gateway_heartbeat_latency_seconds_bucket{le="0.01"} 0
rapture_gateway_heartbeat_latency_seconds_bucket{le="0.02"} 0
rapture_gateway_heartbeat_latency_seconds_bucket{le="0.04"} 0
rapture_gateway_heartbeat_latency_seconds_bucket{le="0.08"} 0
rapture_gateway_heartbeat_latency_seconds_bucket{le="0.16"} 0
rapture_gateway_heartbeat_latency_seconds_bucket{le="0.32"} 0
rapture_gateway_heartbeat_latency_seconds_bucket{le="0.64"} 0
rapture_gateway_heartbeat_latency_seconds_bucket{le="1.28"} 1
rapture_gateway_heartbeat_latency_seconds_bucket{le="2.56"} 1
rapture_gateway_heartbeat_latency_seconds_bucket{le="5.12"} 1
rapture_gateway_heartbeat_latency_seconds_bucket{le="+Inf"} 1
rapture_gateway_heartbeat_latency_seconds_sum 1.25
rapture_gateway_heartbeat_latency_seconds_count 1
`
	if err := promtestutil.CollectAndCompare(m.HeartbeatLatency, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestHeartbeater_RequestedBeatIsNotAMiss(t *testing.T) {
	probe := startHeartbeat(t, 1, nil)

	probe.heartbeat.request()
	testutil.RequireReceive(t, probe.sent, waitTimeout, "requested beat")
	probe.heartbeat.ack()

	probe.tick(time.Second)
	testutil.RequireReceive(t, probe.sent, waitTimeout, "scheduled beat")
	select {
	case <-probe.zombie:
		t.Fatal("requested beat counted as a miss")
	default:
	}
}
