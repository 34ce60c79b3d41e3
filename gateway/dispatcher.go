// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// dispatcher holds registered handlers and delivers events off the
// read loop. Each dispatch gets its own goroutine, which runs the
// matching typed handlers and then the OnAny handlers, in registration
// order.
type dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	typed    map[EventType][]func(context.Context, Event)
	untyped  []func(context.Context, RawDispatch)
	inflight sync.WaitGroup
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	return &dispatcher{
		logger: logger,
		typed:  make(map[EventType][]func(context.Context, Event)),
	}
}

// On registers handler for events of type T. Handlers run on their own
// goroutine, never on the connection's read loop, so a slow handler
// does not delay heartbeats or other dispatches. Register handlers
// before calling [Gateway.Run].
//
//	gateway.On(g, func(ctx context.Context, m *gateway.MessageCreate) {
//		log.Println(m.Content)
//	})
func On[T any, P interface {
	*T
	Event
}](g *Gateway, handler func(context.Context, P)) {
	var zero T
	eventType := P(&zero).EventType()
	g.dispatcher.add(eventType, func(ctx context.Context, event Event) {
		typed, ok := event.(P)
		if !ok {
			return
		}
		handler(ctx, typed)
	})
}

// OnAny registers handler for every received dispatch, including event
// types with no typed decoder. Dispatches whose payload fails to decode
// are dropped before any handler runs. It does not see locally raised
// events.
func (g *Gateway) OnAny(handler func(context.Context, RawDispatch)) {
	g.dispatcher.mu.Lock()
	defer g.dispatcher.mu.Unlock()
	g.dispatcher.untyped = append(g.dispatcher.untyped, handler)
}

func (d *dispatcher) add(eventType EventType, handler func(context.Context, Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.typed[eventType] = append(d.typed[eventType], handler)
}

// deliver hands a dispatch to its handlers asynchronously. event may be
// nil (no decoder, or decoding failed); raw may be nil for local
// events.
func (d *dispatcher) deliver(ctx context.Context, event Event, raw *RawDispatch) {
	d.mu.RLock()
	var typed []func(context.Context, Event)
	if event != nil {
		typed = d.typed[event.EventType()]
	}
	var untyped []func(context.Context, RawDispatch)
	if raw != nil {
		untyped = d.untyped
	}
	d.mu.RUnlock()

	if len(typed) == 0 && len(untyped) == 0 {
		return
	}

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		for _, handler := range typed {
			d.call(string(event.EventType()), func() { handler(ctx, event) })
		}
		for _, handler := range untyped {
			d.call(string(raw.Type), func() { handler(ctx, *raw) })
		}
	}()
}

// call runs one handler. A panicking handler is logged and does not
// take down the gateway or the handlers after it.
func (d *dispatcher) call(eventType string, run func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			d.logger.Error("event handler panicked",
				"event", eventType,
				"panic", fmt.Sprint(recovered),
			)
		}
	}()
	run()
}

// wait blocks until every delivered dispatch has finished.
func (d *dispatcher) wait() {
	d.inflight.Wait()
}
