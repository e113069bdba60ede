package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/arovi-health/arovi/config"
	"github.com/arovi-health/arovi/internal/briefing"
	"github.com/arovi-health/arovi/internal/runtime"
	"github.com/arovi-health/arovi/internal/store"
	"github.com/arovi-health/arovi/internal/telemetry"
	"github.com/arovi-health/arovi/provider"
	"github.com/arovi-health/arovi/session"
	"github.com/arovi-health/arovi/tools/websearch"
)

// Run wires the HTTP API, database, session store, scheduler, and the
// briefing engine together and serves until the process exits.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
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
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return err
	}
	st, err := store.New(ctx, cfg.Storage.Postgres)
	if err != nil {
		return err
	}

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}
	auth := &AuthHandler{Store: st, Secret: secret}

	tele := telemetry.NewTelemetry(cfg.Telemetry)
	llm, err := provider.NewLLMProvider(cfg.LLM)
	if err != nil {
		return err
	}
	searcher, err := newSearcher(cfg.Sources.WebSearch)
	if err != nil {
		return err
	}
	engine, err := briefing.NewEngine(cfg, llm, searcher, tele, nil)
	if err != nil {
		return err
	}

	// redis backs both the session store and the scheduler lock
	var rdb *redis.Client
	sessType := session.InMemoryStore
	if cfg.Storage.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
		sessType = session.RedisStore
	}
	sessions, err := session.NewStore(sessType, rdb)
	if err != nil {
		return err
	}

	bh := &BriefingsHandler{
		Store:    st,
		Engine:   engine,
		Sessions: sessions,
		Logger:   log.New(log.Writer(), "[RUNS] ", log.LstdFlags),
	}

	api := e.Group("/api")
	auth.Register(api.Group("/auth"))
	bh.Register(api, secret)

	me := api.Group("/me")
	me.Use(runtime.EchoAuthMiddleware(secret))
	me.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"user_id": c.Get("user_id").(string)})
	})

	sched := &Scheduler{Store: st, Rdb: rdb, Handler: bh, Stop: make(chan struct{})}
	sched.Start()

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10001"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

func newSearcher(cfg config.WebSearchConfig) (websearch.WebSearcher, error) {
	switch websearch.Provider(cfg.Provider) {
	case websearch.BraveProvider:
		return websearch.NewWebSearcher(websearch.BraveProvider, cfg.BraveAPIKey)
	case websearch.SerperProvider, "":
		return websearch.NewWebSearcher(websearch.SerperProvider, cfg.SerperAPIKey)
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", cfg.Provider)
	}
}
