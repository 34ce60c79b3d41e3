// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/rapture-chat/rapture/lib/clock"
	"github.com/rapture-chat/rapture/lib/netutil"
	"github.com/rapture-chat/rapture/lib/secret"
	"github.com/rapture-chat/rapture/metrics"
)

// ErrClosed is the cause attached to a connection torn down by
// [Gateway.Close].
var ErrClosed = errors.New("gateway: closed")

// ErrNotConnected is returned by commands issued while no connection
// is open.
var ErrNotConnected = errors.New("gateway: not connected")

var (
	errZombie    = errors.New("gateway: heartbeat acknowledgements missed")
	errReconnect = errors.New("gateway: server requested reconnect")
)

// Defaults applied by New.
const (
	DefaultLargeThreshold    = 150
	DefaultMaxMissedAcks     = 2
	DefaultReconnectMinDelay = time.Second
	DefaultReconnectMaxDelay = 2 * time.Minute

	// The server disconnects clients that send more than 120 commands
	// per 60 seconds. A burst of 60 refilling at one per second never
	// exceeds that in any window.
	DefaultSendRate  = rate.Limit(1)
	DefaultSendBurst = 60
)

// State is the connection lifecycle stage.
type State int32

const (
	StateDisconnected State = iota
	StateAwaitingHello
	StateIdentifying
	StateResuming
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAwaitingHello:
		return "awaiting_hello"
	case StateIdentifying:
		return "identifying"
	case StateResuming:
		return "resuming"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds configuration for creating a Gateway.
type Config struct {
	// URL is the gateway URL, usually from rest.Client.GetGatewayBot.
	// Required.
	URL string

	// Token authenticates IDENTIFY and RESUME. Required. The caller
	// keeps ownership.
	Token *secret.Buffer

	// Intents selects the event groups the server sends.
	Intents int64

	// ShardID and ShardCount place this connection in a sharded bot.
	// ShardCount defaults to 1.
	ShardID    int
	ShardCount int

	// LargeThreshold is the member count above which GUILD_CREATE omits
	// offline members. 50 to 250; defaults to 150.
	LargeThreshold int

	// Compress asks the server for zlib-compressed payloads.
	Compress bool

	// Properties describe the client in IDENTIFY. Defaults to
	// DefaultIdentifyProperties().
	Properties *IdentifyProperties

	// Presence is the initial presence sent with IDENTIFY.
	Presence *Presence

	// MaxMissedAcks is how many heartbeats in a row may go
	// unacknowledged before the connection is treated as dead.
	// Defaults to 2.
	MaxMissedAcks int

	// Dialer opens connections. Defaults to WebSocketDialer{}.
	Dialer Dialer

	// Store persists the session across restarts. Nil disables
	// persistence.
	Store SessionStore

	// Jitter returns the fraction of the heartbeat interval to wait
	// before the first beat, in [0, 1). Defaults to rand.Float64.
	Jitter func() float64

	// ReconnectMinDelay and ReconnectMaxDelay bound the exponential
	// backoff between failed connections.
	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration

	// SendRate and SendBurst shape outbound commands. Default to one
	// per second with a burst of 60.
	SendRate  rate.Limit
	SendBurst int

	// Clock provides time operations. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics receives gateway observations. Nil disables metrics.
	Metrics *metrics.Metrics
}

// Gateway maintains a session with the real-time gateway: it connects,
// authenticates, keeps the connection alive, resumes after drops, and
// delivers dispatches to registered handlers.
type Gateway struct {
	url            string
	token          *secret.Buffer
	intents        int64
	shard          [2]int
	largeThreshold int
	compress       bool
	properties     IdentifyProperties
	presence       *Presence
	maxMissedAcks  int
	dialer         Dialer
	store          SessionStore
	jitter         func() float64
	minDelay       time.Duration
	maxDelay       time.Duration
	clock          clock.Clock
	logger         *slog.Logger
	metrics        *metrics.Metrics

	sendLimiter *rate.Limiter
	dispatcher  *dispatcher

	state   atomic.Int32
	session atomic.Pointer[Session]
	running atomic.Bool

	mu        sync.Mutex
	current   *connection
	cancelRun context.CancelCauseFunc
	closed    bool
}

// connection is the per-transport state. It lives from dial until the
// transport closes.
type connection struct {
	conn   Conn
	cancel context.CancelCauseFunc
	// handlerCtx is Run's context, handed to event handlers.
	handlerCtx context.Context

	heartbeat *heartbeater
	writeMu   sync.Mutex
	ready     bool
}

// New creates a Gateway from config. Returns an error if the
// configuration is invalid.
func New(config Config) (*Gateway, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("gateway: URL is required")
	}
	if config.Token == nil || config.Token.Len() == 0 {
		return nil, fmt.Errorf("gateway: Token is required")
	}

	shardCount := config.ShardCount
	if shardCount == 0 {
		shardCount = 1
	}
	if shardCount < 1 || config.ShardID < 0 || config.ShardID >= shardCount {
		return nil, fmt.Errorf("gateway: shard %d of %d is out of range", config.ShardID, shardCount)
	}

	largeThreshold := config.LargeThreshold
	if largeThreshold == 0 {
		largeThreshold = DefaultLargeThreshold
	}
	if largeThreshold < 50 || largeThreshold > 250 {
		return nil, fmt.Errorf("gateway: LargeThreshold must be between 50 and 250 (got %d)", largeThreshold)
	}

	maxMissedAcks := config.MaxMissedAcks
	if maxMissedAcks == 0 {
		maxMissedAcks = DefaultMaxMissedAcks
	}
	if maxMissedAcks < 1 {
		return nil, fmt.Errorf("gateway: MaxMissedAcks must be positive")
	}

	properties := DefaultIdentifyProperties()
	if config.Properties != nil {
		properties = *config.Properties
	}

	dialer := config.Dialer
	if dialer == nil {
		dialer = WebSocketDialer{}
	}

	jitter := config.Jitter
	if jitter == nil {
		jitter = rand.Float64
	}

	minDelay := config.ReconnectMinDelay
	if minDelay <= 0 {
		minDelay = DefaultReconnectMinDelay
	}
	maxDelay := config.ReconnectMaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultReconnectMaxDelay
	}
	if maxDelay < minDelay {
		return nil, fmt.Errorf("gateway: ReconnectMaxDelay %s is below ReconnectMinDelay %s", maxDelay, minDelay)
	}

	sendRate := config.SendRate
	if sendRate <= 0 {
		sendRate = DefaultSendRate
	}
	sendBurst := config.SendBurst
	if sendBurst <= 0 {
		sendBurst = DefaultSendBurst
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("shard", config.ShardID)

	return &Gateway{
		url:            config.URL,
		token:          config.Token,
		intents:        config.Intents,
		shard:          [2]int{config.ShardID, shardCount},
		largeThreshold: largeThreshold,
		compress:       config.Compress,
		properties:     properties,
		presence:       config.Presence,
		maxMissedAcks:  maxMissedAcks,
		dialer:         dialer,
		store:          config.Store,
		jitter:         jitter,
		minDelay:       minDelay,
		maxDelay:       maxDelay,
		clock:          clk,
		logger:         logger,
		metrics:        config.Metrics,
		sendLimiter:    rate.NewLimiter(sendRate, sendBurst),
		dispatcher:     newDispatcher(logger),
	}, nil
}

// State returns the current lifecycle stage.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

func (g *Gateway) setState(state State) {
	previous := State(g.state.Swap(int32(state)))
	if previous != state {
		g.logger.Debug("gateway state changed", "from", previous, "to", state)
	}
}

// Session returns a snapshot of the current session, or false before
// the first READY (or a state loaded from the store).
func (g *Gateway) Session() (SessionState, bool) {
	session := g.session.Load()
	if session == nil {
		return SessionState{}, false
	}
	return session.state(time.Time{}), true
}

// Run connects and keeps the session alive until ctx is cancelled,
// Close is called, or the server closes with a code that forbids
// reconnecting. It returns nil after Close, ctx.Err() after
// cancellation, and a *CloseError for a fatal close code. Handlers
// receive a context that ends when Run returns.
//
// Run may be called once at a time.
func (g *Gateway) Run(ctx context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		return fmt.Errorf("gateway: Run already in progress")
	}
	defer g.running.Store(false)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.cancelRun = cancel
	g.mu.Unlock()

	g.loadSession(runCtx)

	policy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(g.minDelay),
		backoff.WithMaxInterval(g.maxDelay),
		backoff.WithMaxElapsedTime(0),
		backoff.WithClockProvider(g.clock),
	)

	for {
		established, err := g.connect(runCtx)
		g.setState(StateDisconnected)

		if cause := context.Cause(runCtx); cause != nil {
			if errors.Is(cause, ErrClosed) {
				g.clearSession(context.WithoutCancel(ctx))
				return nil
			}
			g.saveSession(context.WithoutCancel(ctx))
			return ctx.Err()
		}
		g.saveSession(runCtx)

		if established {
			policy.Reset()
		}

		var closeErr *CloseError
		if errors.As(err, &closeErr) {
			if closeErr.InvalidatesSession() {
				g.invalidateSession(runCtx)
			}
			if closeErr.Fatal() {
				g.logger.Error("gateway closed with fatal code",
					"close_code", closeErr.Code,
					"reason", closeErr.Reason,
				)
				return closeErr
			}
		}

		if errors.Is(err, errZombie) || errors.Is(err, errReconnect) {
			g.logger.Info("reconnecting", "reason", err)
			g.metrics.IncReconnect()
			continue
		}

		delay := policy.NextBackOff()
		g.logger.Warn("gateway connection lost, backing off",
			"error", err,
			"delay", delay,
		)
		select {
		case <-g.clock.After(delay):
		case <-runCtx.Done():
			continue
		}
		g.metrics.IncReconnect()
	}
}

// Close ends Run with a normal close. The saved session is cleared, so
// the next Run identifies a new session.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	if g.cancelRun != nil {
		g.cancelRun(ErrClosed)
	}
	return nil
}

// Wait blocks until every handler delivered so far has returned.
func (g *Gateway) Wait() {
	g.dispatcher.wait()
}

// UpdatePresence sends a presence update (opcode 3) on the current
// connection.
func (g *Gateway) UpdatePresence(ctx context.Context, presence Presence) error {
	g.mu.Lock()
	current := g.current
	g.mu.Unlock()
	if current == nil {
		return ErrNotConnected
	}
	if presence.Activities == nil {
		presence.Activities = []Activity{}
	}
	return g.send(ctx, current, OpPresenceUpdate, presence)
}

// connect runs one connection from dial to teardown. established
// reports whether it reached READY or RESUMED.
func (g *Gateway) connect(runCtx context.Context) (established bool, err error) {
	target := g.url
	if session := g.session.Load(); session != nil && !session.Invalid() && session.ResumeURL() != "" {
		target = session.ResumeURL()
	}

	g.setState(StateAwaitingHello)
	conn, err := g.dialer.Dial(runCtx, target)
	if err != nil {
		return false, err
	}

	connCtx, cancel := context.WithCancelCause(runCtx)
	current := &connection{conn: conn, cancel: cancel, handlerCtx: runCtx}
	closeDone := make(chan struct{})
	context.AfterFunc(connCtx, func() {
		defer close(closeDone)
		code := closeResumable
		if errors.Is(context.Cause(connCtx), ErrClosed) {
			code = closeNormal
		}
		if err := conn.Close(code, ""); err != nil && !netutil.IsExpectedCloseError(err) {
			g.logger.Debug("closing gateway connection", "close_code", code, "error", err)
		}
	})

	g.mu.Lock()
	g.current = current
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.current = nil
		g.mu.Unlock()
		cancel(nil)
		<-closeDone
	}()

	g.logger.Info("gateway connected", "url", target)
	err = g.readLoop(connCtx, current)
	return current.ready, err
}

func (g *Gateway) readLoop(ctx context.Context, current *connection) error {
	for {
		data, err := current.conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			var closeErr *CloseError
			if errors.As(err, &closeErr) {
				g.logger.Info("gateway closed by server",
					"close_code", closeErr.Code,
					"reason", closeErr.Reason,
				)
				return closeErr
			}
			if netutil.IsExpectedCloseError(err) {
				return fmt.Errorf("gateway: connection closed: %w", err)
			}
			return fmt.Errorf("gateway: reading: %w", err)
		}
		g.handlePacket(ctx, current, data)
	}
}

func (g *Gateway) handlePacket(ctx context.Context, current *connection, data []byte) {
	var packet Packet
	if err := json.Unmarshal(data, &packet); err != nil {
		g.logger.Warn("dropping malformed gateway packet", "error", err)
		return
	}
	g.metrics.IncPacket(packet.Op.String())

	switch packet.Op {
	case OpHello:
		g.handleHello(ctx, current, packet.Data)
	case OpDispatch:
		g.handleDispatch(ctx, current, packet)
	case OpHeartbeat:
		if current.heartbeat != nil {
			current.heartbeat.request()
		}
	case OpHeartbeatAck:
		if current.heartbeat != nil {
			current.heartbeat.ack()
		}
	case OpReconnect:
		g.logger.Info("server requested reconnect")
		current.cancel(errReconnect)
	case OpInvalidSession:
		g.handleInvalidSession(ctx, current, packet.Data)
	default:
		g.logger.Debug("ignoring gateway packet", "op", packet.Op)
	}
}

func (g *Gateway) handleHello(ctx context.Context, current *connection, data json.RawMessage) {
	var hello helloData
	if err := json.Unmarshal(data, &hello); err != nil || hello.HeartbeatInterval <= 0 {
		g.logger.Warn("invalid HELLO payload", "error", err)
		current.cancel(fmt.Errorf("gateway: invalid HELLO: %s", data))
		return
	}

	if current.heartbeat == nil {
		interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond
		first := time.Duration(float64(interval) * g.jitter())
		heartbeat := newHeartbeater(interval, first, g.maxMissedAcks, g.clock, g.logger, g.metrics)
		heartbeat.send = func(ctx context.Context) error {
			return g.send(ctx, current, OpHeartbeat, g.heartbeatPayload())
		}
		heartbeat.onZombie = func() { current.cancel(errZombie) }
		current.heartbeat = heartbeat
		go heartbeat.run(ctx)
	}

	session := g.session.Load()
	if session != nil && !session.Invalid() {
		g.setState(StateResuming)
		g.logger.Info("resuming session",
			"session_id", session.ID(),
			"sequence", session.Sequence(),
		)
		g.sendCommand(ctx, current, OpResume, resumeData{
			Token:     g.token.String(),
			SessionID: session.ID(),
			Sequence:  session.Sequence(),
		})
		return
	}
	g.identify(ctx, current)
}

func (g *Gateway) identify(ctx context.Context, current *connection) {
	g.setState(StateIdentifying)
	g.logger.Info("identifying new session")
	g.sendCommand(ctx, current, OpIdentify, identifyData{
		Token:          g.token.String(),
		Properties:     g.properties,
		Compress:       g.compress,
		LargeThreshold: g.largeThreshold,
		Shard:          g.shard,
		Presence:       g.presence,
		Intents:        g.intents,
	})
}

func (g *Gateway) handleDispatch(ctx context.Context, current *connection, packet Packet) {
	if session := g.session.Load(); session != nil {
		session.observe(packet.Sequence)
	}

	event, err := decodeEvent(packet.Type, packet.Data)
	if err != nil {
		g.logger.Warn("dropping undecodable dispatch",
			"event", packet.Type,
			"sequence", packet.Sequence,
			"error", err,
		)
		return
	}

	switch typed := event.(type) {
	case *Ready:
		session := newSession(typed.SessionID, typed.ResumeGatewayURL)
		session.observe(packet.Sequence)
		g.session.Store(session)
		current.ready = true
		g.setState(StateConnected)
		g.logger.Info("session ready",
			"session_id", typed.SessionID,
			"user", typed.User.Username,
			"guilds", len(typed.Guilds),
		)
		g.saveSession(ctx)
	case *Resumed:
		current.ready = true
		g.setState(StateConnected)
		g.logger.Info("session resumed", "sequence", packet.Sequence)
	}

	g.dispatcher.deliver(current.handlerCtx, event, &RawDispatch{
		Type:     packet.Type,
		Sequence: packet.Sequence,
		Data:     packet.Data,
	})
}

func (g *Gateway) handleInvalidSession(ctx context.Context, current *connection, data json.RawMessage) {
	var resumable bool
	if len(data) > 0 {
		if err := json.Unmarshal(data, &resumable); err != nil {
			g.logger.Debug("invalid session payload is not a boolean", "error", err)
		}
	}
	g.logger.Warn("session invalidated by server", "resumable", resumable)
	g.invalidateSession(ctx)
	g.dispatcher.deliver(current.handlerCtx, &SessionInvalidated{Resumable: resumable}, nil)
	g.identify(ctx, current)
}

// invalidateSession marks the current session as unresumable and
// forgets the saved copy.
func (g *Gateway) invalidateSession(ctx context.Context) {
	if session := g.session.Load(); session != nil {
		session.invalidate()
	}
	g.metrics.IncSessionInvalidation()
	g.clearSession(ctx)
}

func (g *Gateway) heartbeatPayload() any {
	session := g.session.Load()
	if session == nil || session.Sequence() == 0 {
		return nil
	}
	return session.Sequence()
}

// sendCommand sends and logs a failure. Failures surface to the read
// loop as a transport error.
func (g *Gateway) sendCommand(ctx context.Context, current *connection, op Opcode, data any) {
	if err := g.send(ctx, current, op, data); err != nil && ctx.Err() == nil {
		g.logger.Warn("sending gateway command failed", "op", op, "error", err)
	}
}

// send writes one command, waiting on the send limiter first.
// Heartbeats take a token but never wait for one: a delayed heartbeat
// would look like a dead connection, and the token they spend pushes
// back the commands queued behind them instead.
func (g *Gateway) send(ctx context.Context, current *connection, op Opcode, data any) error {
	payload, err := json.Marshal(outboundPacket{Op: op, Data: data})
	if err != nil {
		return fmt.Errorf("gateway: encoding %s: %w", op, err)
	}

	now := g.clock.Now()
	reservation := g.sendLimiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 && op != OpHeartbeat {
		g.logger.Debug("gateway send rate limited", "op", op, "delay", delay)
		select {
		case <-g.clock.After(delay):
		case <-ctx.Done():
			reservation.CancelAt(g.clock.Now())
			return ctx.Err()
		}
	}

	current.writeMu.Lock()
	defer current.writeMu.Unlock()
	if err := current.conn.Write(ctx, payload); err != nil {
		return fmt.Errorf("gateway: writing %s: %w", op, err)
	}
	return nil
}

func (g *Gateway) loadSession(ctx context.Context) {
	if g.store == nil || g.session.Load() != nil {
		return
	}
	state, err := g.store.Load(ctx)
	if err != nil {
		g.logger.Warn("loading saved session failed", "error", err)
		return
	}
	if state == nil || state.ID == "" {
		return
	}
	g.session.Store(sessionFromState(*state))
	g.logger.Info("loaded saved session",
		"session_id", state.ID,
		"sequence", state.Sequence,
	)
}

func (g *Gateway) saveSession(ctx context.Context) {
	if g.store == nil {
		return
	}
	session := g.session.Load()
	if session == nil || session.Invalid() {
		return
	}
	if err := g.store.Save(ctx, session.state(g.clock.Now())); err != nil {
		g.logger.Warn("saving session failed", "session_id", session.ID(), "error", err)
	}
}

func (g *Gateway) clearSession(ctx context.Context) {
	if g.store == nil {
		return
	}
	if err := g.store.Clear(ctx); err != nil {
		g.logger.Warn("clearing saved session failed", "error", err)
	}
}
