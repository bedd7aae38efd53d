package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ayurcare/panchakarma/internal/catalog"
	"github.com/ayurcare/panchakarma/internal/config"
	"github.com/ayurcare/panchakarma/internal/domain/protocol"
	"github.com/ayurcare/panchakarma/internal/domain/resource"
	"github.com/ayurcare/panchakarma/internal/domain/scheduler"
	"github.com/ayurcare/panchakarma/internal/domain/session"
	"github.com/ayurcare/panchakarma/internal/platform/db"
	"github.com/ayurcare/panchakarma/internal/platform/middleware"
	"github.com/ayurcare/panchakarma/internal/platform/planner"
	"github.com/ayurcare/panchakarma/internal/platform/validation"
	"github.com/ayurcare/panchakarma/internal/platform/websocket"
)

const requestTimeout = 30 * time.Second

// newOfflineService backs a scheduler with an empty in-memory session store.
func newOfflineService(cat *catalog.Catalog) (*scheduler.Service, error) {
	protocols, reg, err := cat.Build()
	if err != nil {
		return nil, err
	}
	return scheduler.NewService(session.NewMemoryRepo(), protocols, reg, planner.NewGenerator(), nil, zerolog.Nop(), scheduler.Options{}), nil
}

// newServer wires the HTTP surface. pool may be nil, in which case sessions are
// kept in memory and /health/db is not mounted.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool) (*echo.Echo, error) {
	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	protocols, reg, err := cat.Build()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	layout, err := cfg.Layout()
	if err != nil {
		return nil, err
	}
	v, err := validation.New()
	if err != nil {
		return nil, err
	}

	var sessions session.Repository
	if pool != nil {
		sessions = session.NewRepoPG(pool)
	} else {
		sessions = session.NewMemoryRepo()
	}

	hub := websocket.NewHub(logger)
	svc := scheduler.NewService(sessions, protocols, reg, planner.NewGenerator(), hub, logger, scheduler.Options{
		Layout:         layout,
		MaxPerResource: cfg.MaxSessionsPerResource,
		Location:       loc,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = v

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.HSTSEnabled))
	e.Use(middleware.BodyLimit(middleware.BodyLimitConfig{
		Default: cfg.BodyLimit,
		Routes:  map[string]string{"/api/v1/plans": cfg.PlanBodyLimit},
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	api := e.Group("/api/v1")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))
	api.Use(middleware.RequestTimeout(requestTimeout))

	protocol.NewHandler(protocol.NewService(protocols)).RegisterRoutes(api)
	resource.NewHandler(reg).RegisterRoutes(api)
	scheduler.NewHandler(svc).RegisterRoutes(api)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(api)

	return e, nil
}

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	var pool *pgxpool.Pool
	if cfg.UsesDatabase() {
		p, err := db.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return err
		}
		defer p.Close()
		pool = p
		logger.Info().Msg("connected to database")
	} else {
		logger.Warn().Msg("DATABASE_URL not set, sessions are kept in memory")
	}

	e, err := newServer(cfg, logger, pool)
	if err != nil {
		return err
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("timezone", cfg.Timezone).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(ctx)
}
