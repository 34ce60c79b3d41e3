// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rapture-chat/rapture/lib/clock"
	"github.com/rapture-chat/rapture/lib/netutil"
	"github.com/rapture-chat/rapture/lib/secret"
	"github.com/rapture-chat/rapture/lib/version"
	"github.com/rapture-chat/rapture/metrics"
	"github.com/rapture-chat/rapture/ratelimit"
)

// DefaultBaseURL is the versioned root of the public API.
const DefaultBaseURL = "https://discord.com/api/v10"

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the root URL for API requests, including the version
	// segment. Defaults to DefaultBaseURL. Must use HTTPS.
	BaseURL string

	// Token authenticates every request. Required. The client reads it
	// on each request and never copies it out of the buffer; the caller
	// keeps ownership and closes it after the client is done.
	Token *secret.Buffer

	// TokenType is the Authorization scheme. Defaults to "Bot".
	TokenType string

	// UserAgent overrides the User-Agent header. Defaults to
	// version.UserAgent().
	UserAgent string

	// HTTPClient is used for all HTTP requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Limiter tracks rate-limit buckets. Clients that share a token
	// should share a Limiter. Defaults to a new Limiter on Clock.
	Limiter *ratelimit.Limiter

	// MaxAttempts bounds how many times a rate-limited request is
	// sent. Zero, the default, retries until the request is admitted or
	// its context ends.
	MaxAttempts int

	// RequestTimeout, when positive, bounds each Do call whose context
	// carries no deadline of its own.
	RequestTimeout time.Duration

	// Clock provides time operations. Defaults to clock.Real().
	// Inject clock.Fake() in tests for deterministic behavior.
	Clock clock.Clock

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics receives request and rate-limit observations. Nil
	// disables metrics.
	Metrics *metrics.Metrics
}

// Client is a rate-limited API client. Safe for concurrent use.
type Client struct {
	baseURL        string
	token          *secret.Buffer
	tokenType      string
	userAgent      string
	httpClient     *http.Client
	limiter        *ratelimit.Limiter
	maxAttempts    int
	requestTimeout time.Duration
	clock          clock.Clock
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// NewClient creates a Client from config. Returns an error if the
// configuration is invalid (missing token, non-HTTPS URL).
func NewClient(config Config) (*Client, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("rest: API client requires HTTPS (got %q)", baseURL)
	}
	if config.Token == nil || config.Token.Len() == 0 {
		return nil, fmt.Errorf("rest: Token is required")
	}
	if config.MaxAttempts < 0 {
		return nil, fmt.Errorf("rest: MaxAttempts must not be negative")
	}

	tokenType := config.TokenType
	if tokenType == "" {
		tokenType = secret.DefaultTokenType
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	limiter := config.Limiter
	if limiter == nil {
		limiter = ratelimit.New(clk)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:        baseURL,
		token:          config.Token,
		tokenType:      tokenType,
		userAgent:      userAgent,
		httpClient:     httpClient,
		limiter:        limiter,
		maxAttempts:    config.MaxAttempts,
		requestTimeout: config.RequestTimeout,
		clock:          clk,
		logger:         logger,
		metrics:        config.Metrics,
	}, nil
}

// Limiter returns the client's rate-limit registry.
func (client *Client) Limiter() *ratelimit.Limiter {
	return client.limiter
}

// Do sends request through the rate-limited pipeline described in the
// package documentation.
//
// Returns the response for 200, 201, and 204. Returns an [*APIError]
// for other 400-502 statuses, and the last [*RateLimitError] when
// MaxAttempts is exhausted. For any other status the response is logged
// and Do returns (nil, nil).
func (client *Client) Do(ctx context.Context, request Request) (*Response, error) {
	if client.requestTimeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, client.requestTimeout)
			defer cancel()
		}
	}

	method := request.Method
	if method == "" {
		method = http.MethodGet
	}

	key := request.routeKey(method)

	body, err := encodeBody(request.Body)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		if err := client.preflight(ctx, key); err != nil {
			return nil, err
		}

		response, err := client.send(ctx, key, method, request, body)
		if err != nil {
			return nil, err
		}

		client.metrics.ObserveRequest(key.Route, response.StatusCode)

		switch status := response.StatusCode; {
		case status == http.StatusOK || status == http.StatusCreated || status == http.StatusNoContent:
			return response, nil

		case status == http.StatusTooManyRequests:
			rateLimitError := parseRateLimitError(response)
			scope := metrics.ScopeRoute
			if rateLimitError.Global {
				scope = metrics.ScopeGlobal
			}
			client.metrics.IncRateLimited(scope)

			if client.maxAttempts > 0 && attempt >= client.maxAttempts {
				return nil, rateLimitError
			}

			client.logger.Warn("rate limited, backing off",
				"route", key.String(),
				"method", method,
				"duration", rateLimitError.RetryAfter,
				"global", rateLimitError.Global,
				"attempt", attempt,
			)
			if err := client.cooldown(ctx, key, rateLimitError); err != nil {
				return nil, err
			}

		case status >= 400 && status <= 502:
			return nil, parseAPIError(response.StatusCode, response.Body)

		default:
			client.logger.Warn("unrecognized response status",
				"route", key.String(),
				"method", method,
				"status", status,
				"body", truncate(response.Body, 512),
			)
			return nil, nil
		}
	}
}

// preflight waits on the global bucket and then reserves one request
// from the route bucket.
func (client *Client) preflight(ctx context.Context, key ratelimit.RouteKey) error {
	waited, err := client.limiter.Global().Preflight(ctx)
	if err != nil {
		return err
	}
	if waited > 0 {
		client.logWait(key, metrics.ScopeGlobal, waited)
	}

	bucket := client.limiter.BucketByRouteKey(key)
	if bucket == nil {
		return nil
	}
	waited, err = bucket.Reserve(ctx)
	if err != nil {
		return err
	}
	if waited > 0 {
		client.logWait(key, metrics.ScopeRoute, waited)
	}
	return nil
}

func (client *Client) logWait(key ratelimit.RouteKey, scope string, waited time.Duration) {
	client.metrics.ObserveRateLimitWait(scope, waited)
	client.logger.Info("rate limit preemptive wait",
		"duration", waited,
		"route", key.String(),
		"scope", scope,
	)
}

// cooldown holds the bucket the 429 applied to for exactly the server's
// retry delay. The bucket's reset is moved to the end of that delay so
// the retry's preflight does not wait again for a header-derived reset.
func (client *Client) cooldown(ctx context.Context, key ratelimit.RouteKey, rateLimitError *RateLimitError) error {
	retryAt := client.clock.Now().Add(rateLimitError.RetryAfter)
	if rateLimitError.Global {
		global := client.limiter.Global()
		global.SetReset(retryAt)
		return global.LockFor(ctx, rateLimitError.RetryAfter)
	}
	bucket := client.limiter.BucketByRouteKey(key)
	if bucket == nil {
		bucket = client.limiter.Update(key, "", 0, 0, retryAt)
	} else {
		bucket.SetReset(retryAt)
	}
	return bucket.LockFor(ctx, rateLimitError.RetryAfter)
}

// send issues one HTTP request and records the rate-limit headers of
// its response. The response body is fully read.
func (client *Client) send(ctx context.Context, key ratelimit.RouteKey, method string, request Request, body []byte) (*Response, error) {
	target := client.baseURL + request.Path
	if len(request.Query) > 0 {
		target += "?" + request.Query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("rest: creating request: %w", err)
	}

	for name, values := range request.Header {
		for _, value := range values {
			httpRequest.Header.Add(name, value)
		}
	}
	httpRequest.Header.Set("Authorization", client.tokenType+" "+client.token.String())
	httpRequest.Header.Set("User-Agent", client.userAgent)
	if body != nil && (method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch) {
		httpRequest.Header.Set("Content-Type", "application/json")
	}
	if request.Reason != "" {
		httpRequest.Header.Set("X-Audit-Log-Reason", url.PathEscape(request.Reason))
	}

	started := client.clock.Now()
	httpResponse, err := client.httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("rest: %s %s: %w", method, request.Path, err)
	}
	defer httpResponse.Body.Close()

	responseBody, err := netutil.ReadResponse(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("rest: reading response body: %w", err)
	}

	client.logger.Debug("request complete",
		"route", key.String(),
		"method", method,
		"status", httpResponse.StatusCode,
		"duration", client.clock.Now().Sub(started),
	)

	if _, ok := client.limiter.UpdateFromHeaders(key, httpResponse.Header); !ok {
		client.logger.Debug("response carried no rate limit headers", "route", key.String())
	}
	if strings.EqualFold(httpResponse.Header.Get(ratelimit.HeaderGlobal), "true") {
		client.limiter.UpdateGlobal(httpResponse.Header)
	}

	return &Response{
		StatusCode: httpResponse.StatusCode,
		Header:     httpResponse.Header,
		Body:       responseBody,
	}, nil
}

func encodeBody(body any) ([]byte, error) {
	switch typed := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return typed, nil
	case json.RawMessage:
		return typed, nil
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("rest: encoding request body: %w", err)
		}
		return encoded, nil
	}
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
