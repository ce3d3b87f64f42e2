// Package server exposes the research loop over HTTP: a streaming chat
// endpoint, transcript CRUD, health and metrics.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jamesnation/deepsearch/config"
	"github.com/jamesnation/deepsearch/internal/cache"
	"github.com/jamesnation/deepsearch/internal/kv"
	"github.com/jamesnation/deepsearch/internal/ratelimit"
	"github.com/jamesnation/deepsearch/internal/research"
	"github.com/jamesnation/deepsearch/internal/store"
	"github.com/jamesnation/deepsearch/provider"
	"github.com/jamesnation/deepsearch/tools/web_fetch"
	"github.com/jamesnation/deepsearch/tools/web_search"
)

// Run wires the dependencies and serves until the listener fails.
func Run(cfg *config.Config) error {
	logger := log.New(log.Writer(), "[SERVER] ", log.LstdFlags)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	httpLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		httpLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	// Shared key-value store. When Redis is unreachable the limiter and
	// cache degrade to a process-local store rather than blocking startup.
	var kvStore kv.Store
	if redisStore, err := kv.NewRedis(ctx, cfg.Storage.Redis); err != nil {
		logger.Printf("redis unavailable (%v), using in-memory store", err)
		kvStore = kv.NewMemory()
	} else {
		kvStore = redisStore
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(kvStore, cfg.RateLimit, nil)
	}
	var memo *cache.Cache
	if cfg.Cache.Enabled {
		memo = cache.New(kvStore, nil)
	}

	llm, err := provider.NewProvider(cfg.LLM.Providers["openai"])
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search.APIKey())
	if err != nil {
		return fmt.Errorf("web searcher: %w", err)
	}
	fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Fetch.Fetcher), cfg.Fetch.Timeout, cfg.Fetch.MaxChars)
	if err != nil {
		return fmt.Errorf("web fetcher: %w", err)
	}

	metrics := research.NewMetrics(prometheus.DefaultRegisterer)
	controller := research.New(cfg, llm, searcher, fetcher, limiter, memo, metrics, nil)

	// Transcript persistence is optional: without Postgres the server still
	// answers, it just forgets.
	var chatStore *store.Store
	if cfg.Storage.Postgres.URL != "" || cfg.Storage.Postgres.Host != "" {
		dsn := cfg.Storage.Postgres.DSN()
		if err := store.Migrate("file://migrations", dsn, "up", 0); err != nil {
			logger.Printf("migrations failed: %v", err)
		}
		chatStore, err = store.New(ctx, dsn)
		if err != nil {
			logger.Printf("postgres unavailable (%v), chat history disabled", err)
			chatStore = nil
		}
	} else {
		logger.Printf("postgres not configured, chat history disabled")
	}

	h := &ChatHandler{Runner: controller, Store: chatStore, Logger: logger}
	api := e.Group("/api")
	h.Register(api)

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10010"
	}
	logger.Printf("listening on %s", addr)
	return e.Start(addr)
}
