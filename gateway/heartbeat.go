// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rapture-chat/rapture/lib/clock"
	"github.com/rapture-chat/rapture/metrics"
)

// heartbeater keeps one connection alive. It beats every interval,
// tracks whether each beat was acknowledged, and calls onZombie when
// maxMissed beats in a row went unanswered.
type heartbeater struct {
	interval  time.Duration
	first     time.Duration
	maxMissed int
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics

	// send writes one HEARTBEAT packet.
	send func(context.Context) error
	// onZombie tears the connection down for a resume.
	onZombie func()

	requested chan struct{}

	mu          sync.Mutex
	awaitingAck bool
	sentAt      time.Time
	missed      int
}

func newHeartbeater(interval, first time.Duration, maxMissed int, clk clock.Clock, logger *slog.Logger, m *metrics.Metrics) *heartbeater {
	return &heartbeater{
		interval:  interval,
		first:     first,
		maxMissed: maxMissed,
		clock:     clk,
		logger:    logger,
		metrics:   m,
		requested: make(chan struct{}, 1),
	}
}

// run beats until ctx ends or the connection is declared a zombie.
func (h *heartbeater) run(ctx context.Context) {
	timer := h.clock.After(h.first)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.requested:
			h.beat(ctx)
		case <-timer:
			if h.overdue() {
				h.logger.Warn("heartbeat acknowledgements missed, reconnecting",
					"missed", h.maxMissed,
					"interval", h.interval,
				)
				h.onZombie()
				return
			}
			h.beat(ctx)
			timer = h.clock.After(h.interval)
		}
	}
}

// request asks for an immediate beat. An immediate beat does not count
// toward missed acknowledgements.
func (h *heartbeater) request() {
	select {
	case h.requested <- struct{}{}:
	default:
	}
}

// overdue records a scheduled beat against the previous one and
// reports whether the miss limit is reached.
func (h *heartbeater) overdue() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.awaitingAck {
		return false
	}
	h.missed++
	return h.missed >= h.maxMissed
}

func (h *heartbeater) beat(ctx context.Context) {
	h.mu.Lock()
	if !h.awaitingAck {
		h.sentAt = h.clock.Now()
	}
	h.awaitingAck = true
	h.mu.Unlock()

	if err := h.send(ctx); err != nil && ctx.Err() == nil {
		h.logger.Warn("sending heartbeat failed", "error", err)
	}
}

// ack records a HEARTBEAT_ACK.
func (h *heartbeater) ack() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.awaitingAck && !h.sentAt.IsZero() {
		h.metrics.ObserveHeartbeatLatency(h.clock.Now().Sub(h.sentAt))
	}
	h.awaitingAck = false
	h.missed = 0
}

// missedCount returns the number of consecutive unacknowledged beats.
func (h *heartbeater) missedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.missed
}
