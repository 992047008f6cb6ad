package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"

	"github.com/almightymoon/trendhive/internal/adapter/handler"
	"github.com/almightymoon/trendhive/internal/adapter/provider/paypal"
	"github.com/almightymoon/trendhive/internal/adapter/provider/stripe"
	"github.com/almightymoon/trendhive/internal/adapter/storage"
	"github.com/almightymoon/trendhive/internal/config"
	"github.com/almightymoon/trendhive/internal/core/service"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	log.Println("connected to mysql")

	if err := runMigrations(db, cfg.MigrationsDir); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	log.Println("migrations up to date")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	// Initialize adapters
	redisAdapter := storage.NewRedisAdapter(rdb)
	mysqlAdapter := storage.NewMySQLAdapter(db)

	stripeClient := stripe.NewClient(cfg.StripeAPIKey, cfg.StripeBaseURL, cfg.PublicBaseURL)
	paypalClient := paypal.NewClient(cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.PayPalBaseURL)

	// Initialize services
	reconcileService := service.NewReconcileService(mysqlAdapter, mysqlAdapter, redisAdapter, cfg.EffectQueueSize)
	checkoutService := service.NewCheckoutService(redisAdapter, redisAdapter, reconcileService, cfg.Currency, stripeClient, paypalClient)
	cartService := service.NewCartService(redisAdapter)
	orderService := service.NewOrderService(mysqlAdapter, mysqlAdapter)

	// Start effects worker pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.EffectWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			reconcileService.RunEffectsWorker(id)
		}(i)
	}
	log.Printf("started %d effects workers", cfg.EffectWorkers)

	// Initialize HTTP server
	webhookHandler := handler.NewWebhookHandler(checkoutService, cfg.StripeWebhookSecret)
	httpHandler := handler.NewHTTPHandler(checkoutService, cartService, orderService, webhookHandler)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpHandler.Routes(),
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	// Stop HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	// Close effects queue and wait for workers
	reconcileService.Close()
	wg.Wait()
	log.Println("effects workers stopped")

	// Close connections
	rdb.Close()
	db.Close()
	log.Println("connections closed")
}

func runMigrations(db *sql.DB, dir string) error {
	driver, err := migratemysql.WithInstance(db, &migratemysql.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "mysql", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
