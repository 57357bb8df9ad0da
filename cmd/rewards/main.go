// cmd/rewards/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"questforge/internal/auth"
	"questforge/internal/catalog"
	"questforge/internal/dailyreward"
	"questforge/internal/engine"
	"questforge/internal/event"
	"questforge/internal/journal"
	"questforge/internal/points"
	"questforge/internal/telemetry"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	CatalogURL      string        `env:"CATALOG_SERVICE_URL"`
	OTelEndpoint    string        `env:"OTEL_ENDPOINT"`
	AdminTokenHash  string        `env:"ADMIN_TOKEN_HASH"`
	AdminTokenSalt  string        `env:"ADMIN_TOKEN_SALT"`
	StatsInterval   time.Duration `env:"STATS_INTERVAL" envDefault:"1m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "questforge-rewards", cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	cat := catalog.Default()
	if cfg.CatalogURL != "" {
		fetched, err := catalog.NewClient(cfg.CatalogURL).Fetch(ctx)
		if err != nil {
			log.Printf("Catalog service unavailable, falling back to builtin catalog: %v", err)
		} else {
			cat = fetched
		}
	}

	var ledgerJournal points.Journal
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		j := journal.New(db)
		if err := j.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to ensure journal schema: %v", err)
		}
		ledgerJournal = j
	}

	eng, err := engine.New(cat, engine.Options{Journal: ledgerJournal})
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}
	if cat.Version != "builtin" {
		eng.Publish(ctx, event.CatalogReloaded{
			Meta:    event.Meta{EmittedAt: time.Now(), Source: "catalog-service"},
			Version: cat.Version,
		})
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	router.Group(func(r chi.Router) {
		engine.NewHandler(eng).Routes(r)
		dailyreward.NewHandler(eng.Daily()).Routes(r)
	})
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireToken(cfg.AdminTokenHash, cfg.AdminTokenSalt))
		points.NewHandler(eng.Ledger()).Routes(r)
	})

	// Periodic aggregated-stats snapshot for the admin collaborator.
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.StatsInterval),
		gocron.NewTask(func() {
			stats := eng.Stats()
			log.Printf("stats: catalog=%s published=%d handler_errors=%d dead_letters=%d",
				stats.CatalogVersion, stats.Published, stats.HandlerErrors, stats.DeadLetters)
		}),
	)
	if err != nil {
		log.Fatalf("Failed to schedule stats job: %v", err)
	}
	scheduler.Start()
	defer scheduler.Shutdown()

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Rewards engine listening on port %s (catalog %s)", cfg.Port, cat.Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}
