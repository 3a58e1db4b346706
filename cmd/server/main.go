package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/robfig/cron/v3"

	"github.com/dansontsui/aistock-analysis/internal/advisor"
	"github.com/dansontsui/aistock-analysis/internal/analysis"
	"github.com/dansontsui/aistock-analysis/internal/api"
	"github.com/dansontsui/aistock-analysis/internal/config"
	"github.com/dansontsui/aistock-analysis/internal/database"
	"github.com/dansontsui/aistock-analysis/internal/kafka"
	"github.com/dansontsui/aistock-analysis/internal/marketdata"
	"github.com/dansontsui/aistock-analysis/internal/rebalance"
	"github.com/dansontsui/aistock-analysis/internal/redis"
	"github.com/dansontsui/aistock-analysis/internal/runner"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := runMigrations(cfg.Database.ConnectionString()); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	defer db.Close()
	log.Println("Connected to PostgreSQL database")

	// Connect to Redis
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v (continuing without cache)", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Connected to Redis cache")
	}

	// Create Kafka producer
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ReportsTopic)
	defer producer.Close()
	log.Printf("Kafka producer initialized (brokers: %v)", cfg.Kafka.Brokers)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Market data client, throttled against the upstream chart API
	market := marketdata.NewYahooClient(cfg.Market.BaseURL, cfg.Market.CallDelay, redisClient, cfg.Market.PriceTTL)

	// AI advisor. The engine runs without it, rebalancing on keepers only.
	var adv runner.Advisor
	if a, err := advisor.New(ctx, cfg.AI.APIKey, cfg.AI.NewsModel, cfg.AI.PickModel); err != nil {
		log.Printf("Warning: advisor unavailable: %v (continuing without AI proposals)", err)
	} else {
		adv = a
	}

	analyzer := analysis.New(analysis.Config{
		RSIBuyAbove:  cfg.Engine.RSIBuyAbove,
		RSISellBelow: cfg.Engine.RSISellBelow,
		MinBars:      cfg.Engine.MinHistoryBars,
	})
	reconciler := rebalance.New(rebalance.Config{
		MaxPositions: cfg.Engine.MaxPositions,
		StopLossPct:  cfg.Engine.StopLossPct,
	})
	engine := runner.New(db, market, analyzer, reconciler, adv, producer, redisClient, cfg.Engine.MinVolumeLots)

	// Daily schedule
	scheduler := cron.New(cron.WithSeconds())
	if _, err := scheduler.AddFunc(cfg.Schedule.DailyCron, func() {
		if _, err := engine.Run(ctx); err != nil {
			log.Printf("Scheduled analysis failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to register daily schedule %q: %v", cfg.Schedule.DailyCron, err)
	}
	scheduler.Start()
	log.Printf("Daily analysis scheduled (%s)", cfg.Schedule.DailyCron)

	if cfg.Schedule.RunOnStart {
		go func() {
			if _, err := engine.Run(ctx); err != nil {
				log.Printf("Startup analysis failed: %v", err)
			}
		}()
	}

	// Set up HTTP handler and routes
	handler := api.NewHandler(db, engine, redisClient, cfg.Admin.Token)
	router := api.SetupRoutes(handler)

	// Create HTTP server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop the scheduler and any in-flight run
	scheduler.Stop()
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func runMigrations(databaseUrl string) error {
	// The "file://" prefix tells the migrate library to use the file driver
	m, err := migrate.New(
		"file://./db/migrations",
		databaseUrl)
	if err != nil {
		log.Fatalf("could not create migrate instance: %v", err)
	}

	// Apply all available migrations up to the latest version
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	// If ErrNoChange is returned, it simply means the database was already current
	if err == migrate.ErrNoChange {
		log.Println("No migrations to apply; database is up to date.")
	}

	return nil
}
