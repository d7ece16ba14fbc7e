package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/mvribeiro/zapstore/internal/adapter/handler"
	"github.com/mvribeiro/zapstore/internal/adapter/storage"
	"github.com/mvribeiro/zapstore/internal/core/domain"
	"github.com/mvribeiro/zapstore/internal/core/service"
	"github.com/mvribeiro/zapstore/internal/port"
	"github.com/mvribeiro/zapstore/pkg/config"
	"github.com/mvribeiro/zapstore/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{
		Service: "zapstore",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Error("failed to open mysql", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to ping mysql", "error", err)
		os.Exit(1)
	}
	log.Info("connected to mysql")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis")

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	orderService := service.NewOrderService(mysqlAdapter, redisAdapter, log, cfg.QueueSize)

	// Notification workers drain the order-created queue and publish to
	// the Redis channel. Delivery is best-effort: a failed publish is
	// logged and the event dropped, never retried against the order.
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			notifierLoop(id, orderService.Events(), redisAdapter, log)
		}(i)
	}
	log.Info("started notification workers", "count", cfg.WorkerCount)

	httpHandler := handler.NewHTTPHandler(orderService)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: mux,
	}

	go func() {
		log.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Info("http server stopped")

	orderService.Close()
	wg.Wait()
	log.Info("notification workers stopped")

	rdb.Close()
	db.Close()
	log.Info("connections closed")
}

func notifierLoop(id int, events <-chan domain.OrderCreatedEvent, publisher port.EventPublisher, log *slog.Logger) {
	for event := range events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if err := publisher.PublishOrderCreated(ctx, event); err != nil {
			log.Error("failed to publish order-created event",
				"worker", id, "order_id", event.OrderID, "error", err)
		} else {
			log.Debug("published order-created event",
				"worker", id, "order_id", event.OrderID)
		}

		cancel()
	}
}
