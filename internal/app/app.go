// Package app wires the session, API client, task cache and mutation
// coordinator into one process-wide graph.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"taskctl/internal/api"
	"taskctl/internal/backend/httptasks"
	"taskctl/internal/config"
	"taskctl/internal/logging"
	"taskctl/internal/mutation"
	"taskctl/internal/querycache"
	"taskctl/internal/service"
	"taskctl/internal/session"
	"taskctl/internal/taskcache"
)

// App is the client-side state of one process.
type App struct {
	Config   *config.Config
	Session  *session.Session
	Service  service.Service
	Auth     service.Auth
	Cache    *taskcache.Cache
	Mutation *mutation.Coordinator
	Logger   *slog.Logger

	unauthorized atomic.Bool
}

// Options overrides parts of the graph, mainly for tests.
type Options struct {
	// HTTPClient replaces the default HTTP client.
	HTTPClient *http.Client

	// Service replaces the HTTP backend for task operations.
	Service service.Service

	// Logger replaces the config-derived logger.
	Logger *slog.Logger
}

// New builds the app from cfg: restores the session, loads the persisted
// cache and connects sign-out to the cache purge.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.New(nil, false)
	}
	s := cfg.Settings

	sess := session.New(session.NewFileStore(cfg.SessionPath()), logging.Component(logger, "session"))
	if err := sess.Restore(); err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Session: sess,
		Logger:  logger,
	}

	apiOpts := []api.Option{
		api.WithLogger(logging.Component(logger, "api")),
		api.WithRateLimit(s.RequestsPerSecond(), s.RateBurst),
		api.WithUnauthorizedHandler(a.markUnauthorized),
	}
	if opts.HTTPClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(opts.HTTPClient))
	}
	client, err := api.New(s.APIURL, sess, apiOpts...)
	if err != nil {
		return nil, err
	}

	backend := httptasks.New(client, s.RequestTimeout)
	a.Auth = backend
	a.Service = backend
	if opts.Service != nil {
		a.Service = opts.Service
	}

	a.Cache = taskcache.New(taskcache.Options{
		StaleTime:   s.StaleTime,
		Retention:   s.Retention,
		Retry:       s.RetryCount(),
		ShouldRetry: retryable,
		Logger:      logging.Component(logger, "cache"),
	})
	if sess.IsAuthenticated() {
		if err := querycache.LoadFile(cfg.CachePath(), a.Cache); err != nil {
			logger.Warn("ignoring persisted cache", "error", err)
		}
	}

	sess.OnSignOut(func() {
		a.Cache.Clear()
		if err := querycache.RemoveFile(cfg.CachePath()); err != nil {
			logger.Warn("failed to remove persisted cache", "error", err)
		}
	})

	a.Mutation = mutation.New(a.Cache, a.Service, mutation.WithLogger(logging.Component(logger, "mutation")))
	return a, nil
}

// markUnauthorized records that a 401 ended the session.
func (a *App) markUnauthorized() {
	a.unauthorized.Store(true)
}

// Unauthorized reports whether a 401 ended the session during this process.
func (a *App) Unauthorized() bool {
	return a.unauthorized.Load()
}

// Close waits for background refetches, drops expired entries and
// persists the cache. An anonymous session leaves no cache on disk.
func (a *App) Close() error {
	a.Cache.Wait()
	a.Cache.GC()

	if !a.Session.IsAuthenticated() || a.Cache.Len() == 0 {
		return querycache.RemoveFile(a.Config.CachePath())
	}
	if err := querycache.SaveFile(a.Config.CachePath(), a.Cache); err != nil {
		return fmt.Errorf("failed to persist cache: %w", err)
	}
	return nil
}

// retryable rejects errors that a second attempt cannot fix.
func retryable(err error) bool {
	return !errors.Is(err, api.ErrUnauthorized) && !errors.Is(err, api.ErrNotFound)
}
