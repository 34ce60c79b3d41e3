// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

// rapture-ping is a small bot built on the rest and gateway packages.
// It answers "!ping" with "Pong!" and greets members who join a guild
// in that guild's first text channel.
//
// Configuration comes from the file named by --config or
// RAPTURE_CONFIG (YAML, or JSONC for .json/.jsonc files). The token is
// read from the configured token_file. When session.store is file or
// redis, a restarted bot resumes its previous gateway session instead
// of identifying a new one.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/rapture-chat/rapture/gateway"
	"github.com/rapture-chat/rapture/lib/config"
	"github.com/rapture-chat/rapture/lib/secret"
	"github.com/rapture-chat/rapture/lib/version"
	"github.com/rapture-chat/rapture/metrics"
	"github.com/rapture-chat/rapture/rest"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var verbose bool

	flagSet := pflag.NewFlagSet("rapture-ping", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the config file (default: $"+config.EnvVar+")")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	showVersion := flagSet.Bool("version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		version.Print("rapture-ping")
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(verbose)

	tokenType, token, err := secret.ReadToken(cfg.TokenFile)
	if err != nil {
		return err
	}
	defer token.Close()
	if cfg.TokenType != "" && tokenType == secret.DefaultTokenType {
		tokenType = cfg.TokenType
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collectorSet := metrics.New(registry)
	if cfg.Metrics.Listen != "" {
		shutdown := serveMetrics(cfg.Metrics.Listen, registry, logger)
		defer shutdown()
	}

	client, err := rest.NewClient(rest.Config{
		BaseURL:        cfg.APIURL,
		Token:          token,
		TokenType:      tokenType,
		MaxAttempts:    cfg.REST.MaxAttempts,
		RequestTimeout: cfg.REST.RequestTimeout.Std(),
		Logger:         logger.With("component", "rest"),
		Metrics:        collectorSet,
	})
	if err != nil {
		return err
	}

	gatewayInfo, err := client.GetGatewayBot(ctx)
	if err != nil {
		return fmt.Errorf("fetching gateway URL: %w", err)
	}
	if gatewayInfo == nil {
		return fmt.Errorf("fetching gateway URL: empty response")
	}
	logger.Info("gateway discovered",
		"url", gatewayInfo.URL,
		"recommended_shards", gatewayInfo.Shards,
		"identify_remaining", gatewayInfo.SessionStartLimit.Remaining,
	)

	store, closeStore, err := newSessionStore(cfg.Session)
	if err != nil {
		return err
	}
	defer closeStore()

	g, err := gateway.New(gateway.Config{
		URL:            gatewayInfo.URL,
		Token:          token,
		Intents:        cfg.Gateway.Intents,
		ShardID:        cfg.Gateway.ShardID,
		ShardCount:     cfg.Gateway.ShardCount,
		LargeThreshold: cfg.Gateway.LargeThreshold,
		Compress:       cfg.Gateway.Compress,
		MaxMissedAcks:  cfg.Gateway.MaxMissedAcks,
		Store:          store,
		Logger:         logger.With("component", "gateway"),
		Metrics:        collectorSet,
	})
	if err != nil {
		return err
	}

	newBot(client, logger).register(g)

	err = g.Run(ctx)
	g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger writes text to a terminal and JSON otherwise.
func newLogger(verbose bool) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		options.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

// newSessionStore builds the configured store. The returned close
// function is always safe to call.
func newSessionStore(cfg config.SessionConfig) (gateway.SessionStore, func(), error) {
	switch cfg.Store {
	case config.StoreFile:
		return &gateway.FileSessionStore{Path: cfg.Path, MaxAge: cfg.MaxAge.Std()}, func() {}, nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store := &gateway.RedisSessionStore{Client: client, Key: cfg.RedisKey, TTL: cfg.MaxAge.Std()}
		return store, func() { client.Close() }, nil
	case config.StoreNone, "":
		return nil, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

func serveMetrics(listen string, registry *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	server := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "listen", listen, "error", err)
		}
	}()
	logger.Info("serving metrics", "listen", listen)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
}
