package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/payment"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/pkg/config"
	"github.com/rl1809/storefront/pkg/logger"
	"github.com/rl1809/storefront/pkg/shutdown"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{
		Service:   "storefront",
		Env:       cfg.AppEnv,
		Level:     cfg.LogLevel,
		AddSource: true,
	})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		fatal(log, "failed to open mysql", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		fatal(log, "failed to ping mysql", err)
	}
	if err := storage.RunMigrations(db); err != nil {
		fatal(log, "failed to run migrations", err)
	}
	log.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		fatal(log, "failed to connect redis", err)
	}
	log.Info("connected to redis")

	// Initialize adapters
	redisAdapter := storage.NewRedisAdapter(rdb)
	mysqlAdapter := storage.NewMySQLAdapter(db)
	paymentClient := payment.NewHTTPClient(payment.Config{
		BaseURL:   cfg.PaymentBaseURL,
		APIKey:    cfg.PaymentAPIKey,
		ReturnURL: cfg.PaymentReturnURL,
		CancelURL: cfg.PaymentCancelURL,
		Timeout:   cfg.PaymentTimeout,
	})

	// Initialize services
	inventory := service.NewInventoryService(mysqlAdapter, redisAdapter, log)
	orderService := service.NewOrderService(mysqlAdapter, redisAdapter, paymentClient, cfg.Rules, cfg.Currency, log)

	// gRPC health
	grpcServer := grpc.NewServer()
	healthHandler := handler.NewGRPCHealth(log)
	healthHandler.AddCheck("mysql", db.PingContext)
	healthHandler.AddCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	healthHandler.Register(grpcServer)

	grpcAddr := fmt.Sprintf(":%d", cfg.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		fatal(log, "failed to listen", err)
	}

	// HTTP
	httpHandler := handler.NewHTTPHandler(orderService, inventory, cfg.Rules, log)
	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           otelhttp.NewHandler(httpHandler.Routes(cfg.RequestTimeout), "storefront"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("gRPC server listening", slog.String("addr", grpcAddr))
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		log.Info("HTTP server listening", slog.String("addr", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return healthHandler.Run(gctx, cfg.HealthInterval)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		healthHandler.Shutdown()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP shutdown error", slog.Any("err", err))
		}
		log.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		log.Info("gRPC server stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", slog.Any("err", err))
	}

	// Close connections
	rdb.Close()
	db.Close()
	log.Info("connections closed")
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, slog.Any("err", err))
	os.Exit(1)
}
