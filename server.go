package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"textnotes/bridge"
	"textnotes/store"
)

// openStore builds the configured backend.
func openStore(ctx context.Context, cfg *Config, logger *zap.Logger) (store.Store, error) {
	opts := []store.Option{
		store.WithLogger(logger.Named("store")),
		store.WithDebounce(cfg.Watch.Debounce),
	}
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("could not connect to redis (%s): %w", cfg.Redis.Addr, err)
		}
		return store.NewRedisStore(client, cfg.Redis.Key, opts...), nil
	default:
		return store.NewFileStore(cfg.DataFile, opts...), nil
	}
}

// app bundles the wired components of the bridge server.
type app struct {
	cfg     *Config
	logger  *zap.Logger
	store   store.Store
	cmds    *bridge.Commands
	hub     *eventHub
	metrics *metrics
}

func newApp(cfg *Config, st store.Store, logger *zap.Logger) *app {
	m := newMetrics()
	cmds := bridge.New(st, logger.Named("bridge"))
	cmds.SetObserver(m.observeCommand)
	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		cmds:    cmds,
		hub:     newEventHub(logger.Named("events"), m),
		metrics: m,
	}
}

// routes returns the bridge's HTTP handler with middleware applied.
func (a *app) routes() http.Handler {
	handler := NewHandler(a.cmds, a.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/invoke/", handler.invokeHandler)
	mux.HandleFunc("/texts", handler.textsHandler)
	mux.HandleFunc("/texts/", handler.textHandler)
	mux.HandleFunc("/events", a.hub.serveWS)
	mux.HandleFunc("/healthz", healthHandler)
	mux.Handle("/metrics", a.metrics.handler())

	var h http.Handler = mux
	if keys := a.cfg.apiKeys(); len(keys) > 0 {
		h = authMiddleware(keys)(h)
	}
	h = a.metrics.middleware(h)
	h = loggingMiddleware(a.logger.Named("http"))(h)
	return requestIDMiddleware(h)
}

// watch forwards store changes to websocket clients until ctx is done.
// Backends without change notification are skipped.
func (a *app) watch(ctx context.Context) {
	w, ok := a.store.(store.Watcher)
	if !ok || !a.cfg.Watch.Enabled {
		return
	}
	if err := w.Watch(ctx, a.hub.notifyChanged); err != nil {
		a.logger.Error("store watch stopped", zap.Error(err))
	}
}

// serve runs the bridge until ctx is cancelled, then shuts down gracefully.
func (a *app) serve(ctx context.Context) error {
	server := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      a.routes(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	// The store is closed once serve returns, so the watcher must stop first.
	watchCtx, stopWatch := context.WithCancel(ctx)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		a.watch(watchCtx)
	}()
	defer func() {
		stopWatch()
		<-watchDone
	}()

	errc := make(chan error, 1)
	go func() {
		a.logger.Info("server is listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("could not listen: %w", err)
		}
	case <-ctx.Done():
	}
	a.logger.Info("server is shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.hub.close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}
