package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/davrd/treelink/internal/analytics"
	"github.com/davrd/treelink/internal/db"
	"github.com/davrd/treelink/internal/enrich"
	"github.com/davrd/treelink/internal/handler"
	"github.com/davrd/treelink/internal/ingest"
	"github.com/davrd/treelink/internal/repo"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

type Config struct {
	Host          string        `env:"HOST" envDefault:"localhost"`
	Port          string        `env:"PORT" envDefault:"8080"`
	DBPath        string        `env:"DB_PATH" envDefault:"treelink.db"`
	GeoAPIURL     string        `env:"GEO_API_URL" envDefault:"http://ip-api.com/json"`
	GeoTimeout    time.Duration `env:"GEO_TIMEOUT" envDefault:"5s"`
	IngestTimeout time.Duration `env:"INGEST_TIMEOUT" envDefault:"10s"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	Debug         bool          `env:"DEBUG"`
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to parse configuration from environment")
	}

	log.Info().
		Interface("config", cfg).
		Msg("current configuration")

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("failed to parse log level")
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Debug {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx := context.Background()
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("application error")
	}
}

func run(ctx context.Context, cfg Config) error {
	log.Info().
		Str("version", version).
		Str("build_time", buildTime).
		Msg("starting application")

	dbInstance, err := db.Init(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbInstance.Close()

	e := echo.New()
	defer e.Close()

	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customErrorHandler

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	treesRepo := repo.NewTreesRepo(dbInstance)
	linksRepo := repo.NewLinksRepo(dbInstance)
	clicksRepo := repo.NewClicksRepo(dbInstance)
	fingerprintsRepo := repo.NewFingerprintsRepo(dbInstance)
	ledger := repo.NewLedger(dbInstance)

	geoClient := enrich.NewGeoClient(cfg.GeoAPIURL, cfg.GeoTimeout)
	identity := ingest.NewIdentityResolver(fingerprintsRepo)
	pipeline := ingest.NewPipeline(identity, geoClient, ledger, cfg.IngestTimeout)
	aggregator := analytics.NewAggregator(treesRepo, linksRepo, clicksRepo)

	clickHandler := handler.NewClickHandler(linksRepo, pipeline)
	treeHandler := handler.NewTreeHandler(treesRepo)
	linkHandler := handler.NewLinkHandler(treesRepo, linksRepo)
	analyticsHandler := handler.NewAnalyticsHandler(aggregator)

	api := e.Group("/api")

	// Click ingestion: the redirect decision must come back fast, attribution
	// rides the best-effort path.
	api.POST("/go", clickHandler.Process)

	api.GET("/trees", treeHandler.ListTrees)
	api.POST("/trees", treeHandler.CreateTree)
	api.GET("/trees/:id", treeHandler.GetTree)
	api.PATCH("/trees/:id", treeHandler.UpdateTree)
	api.DELETE("/trees/:id", treeHandler.DeleteTree)

	api.GET("/trees/:id/links", linkHandler.ListLinks)
	api.POST("/trees/:id/links", linkHandler.CreateLink)
	api.PATCH("/trees/:id/links/:linkId", linkHandler.UpdateLink)
	api.DELETE("/trees/:id/links/:linkId", linkHandler.DeleteLink)
	api.PUT("/trees/:id/links/reorder", linkHandler.ReorderLinks)

	api.GET("/trees/:id/analytics", analyticsHandler.GetTreeAnalytics)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	log.Info().Str("address", cfg.Port).Msg("server starting")

	// Run server and handle graceful shutdown
	runServer(ctx, e, cfg.Port)

	return nil
}

func runServer(ctx context.Context, e *echo.Echo, port string) {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(":" + port)
	}()

	// Wait for context cancellation (Ctrl+C or SIGTERM)
	<-ctx.Done()

	log.Info().Msg("shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during graceful shutdown")
	}

	if err := <-serverErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("server stopped")
}

func customErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := "internal server error"
	isAPICall := strings.HasPrefix(c.Path(), "/api/")

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		}
	}

	log.Error().
		Int("code", code).
		Bool("api", isAPICall).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Err(err).
		Msg("http error")

	if c.Response().Committed {
		return
	}

	c.JSON(code, map[string]any{
		"error": message,
	})
}
