package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/nursace/storefront/internal/adapter/handler"
	"github.com/nursace/storefront/internal/adapter/notify"
	"github.com/nursace/storefront/internal/adapter/payment"
	"github.com/nursace/storefront/internal/adapter/storage"
	"github.com/nursace/storefront/internal/config"
	"github.com/nursace/storefront/internal/core/domain"
	"github.com/nursace/storefront/internal/core/service"
	"github.com/nursace/storefront/internal/port"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.FromEnv()

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

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	store := storage.NewMySQLAdapter(db)
	if err := store.RunMigrations(cfg.MigrationsDir); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	log.Println("migrations applied")

	cache := storage.NewRedisAdapter(rdb)
	gateway := payment.New(cfg.Payment)
	publisher := notify.NewKafkaPublisher(cfg.Kafka)
	mailer := notify.NewSMTPMailer(cfg.SMTP)

	checkoutSvc := service.NewCheckoutService(store, gateway)
	orderSvc := service.NewOrderService(store, cache, cfg.QueueSize)
	cartSvc := service.NewCartService(store)

	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			receiptWorker(id, orderSvc.ReceiptQueue(), publisher, mailer)
		}(i)
	}
	log.Printf("started %d notification workers", cfg.WorkerCount)

	engine := gin.Default()
	h := handler.NewHTTPHandler(checkoutSvc, orderSvc, cartSvc, gateway)
	h.Register(engine)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	go func() {
		log.Printf("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	orderSvc.Close()
	wg.Wait()
	log.Println("notification workers stopped")

	publisher.Close()
	rdb.Close()
	db.Close()
	log.Println("connections closed")
}

// receiptWorker drains the receipt queue off the callback path. Publish and
// email are independent best-effort deliveries: a failure of one does not
// stop the other, and neither touches order state.
func receiptWorker(id int, queue <-chan domain.Receipt, publisher port.Publisher, mailer port.Mailer) {
	for receipt := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)

		if err := publisher.PublishOrderPaid(ctx, receipt); err != nil {
			log.Printf("worker %d: publish order %d: %v", id, receipt.OrderID, err)
		} else {
			log.Printf("worker %d: published order %d", id, receipt.OrderID)
		}

		if err := mailer.SendReceipt(ctx, receipt); err != nil {
			log.Printf("worker %d: receipt email for order %d: %v", id, receipt.OrderID, err)
		} else {
			log.Printf("worker %d: receipt email sent for order %d", id, receipt.OrderID)
		}

		cancel()
	}
}
