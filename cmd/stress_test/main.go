package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/almightymoon/trendhive/internal/adapter/storage"
	"github.com/almightymoon/trendhive/internal/core/domain"
	"github.com/almightymoon/trendhive/internal/core/service"
)

const (
	externalRef   = "stress-sess-1"
	userID        = "stress-user"
	totalRequests = 50
	queueSize     = 100
)

// Fires many concurrent completion signals for the same payment reference,
// the way a webhook burst and a browser confirm can collide, and checks that
// exactly one order row exists afterwards.
func main() {
	ctx := context.Background()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/trendhive?parseTime=true"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Clear previous run
	if _, err := db.ExecContext(ctx, `DELETE FROM orders WHERE external_ref = ?`, externalRef); err != nil {
		log.Fatalf("failed to clear previous orders: %v", err)
	}
	db.ExecContext(ctx, `DELETE FROM pending_reviews WHERE user_id = ?`, userID)

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	reconciler := service.NewReconcileService(mysqlAdapter, mysqlAdapter, redisAdapter, queueSize)
	go reconciler.RunEffectsWorker(0)

	input := service.MaterializeInput{
		Provider:    domain.ProviderStripe,
		ExternalRef: externalRef,
		Amount:      decimal.RequireFromString("20.00"),
		Currency:    "USD",
		Items: []domain.LineItem{{
			ProductID: "stress-mug",
			Title:     "Mug",
			UnitPrice: decimal.RequireFromString("10.00"),
			Quantity:  2,
		}},
		OwnerID: userID,
	}

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if _, err := reconciler.MaterializeOrder(ctx, input); err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	reconciler.Close()

	var orderCount int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE external_ref = ?`, externalRef).Scan(&orderCount); err != nil {
		log.Fatalf("failed to count orders: %v", err)
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", successCount.Load())
	fmt.Printf("Failed:           %d\n", failCount.Load())
	fmt.Printf("Orders Stored:    %d\n", orderCount)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if orderCount == 1 && successCount.Load() == totalRequests {
		fmt.Println("PASS: every caller got an order, exactly one was stored")
	} else {
		fmt.Printf("FAIL: expected 1 stored order and %d successes, got %d/%d\n",
			totalRequests, orderCount, successCount.Load())
	}
}
