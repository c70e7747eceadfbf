package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"istqrar/internal/config"
	"istqrar/internal/handlers"
	"istqrar/internal/logging"
	"istqrar/internal/repository"
	"istqrar/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger := logging.SetupLogger(cfg.LogLevel)

	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	poolConfig, err := pgxpool.ParseConfig(cfg.DBURL)
	if err != nil {
		logger.Error("failed to parse db config", "err", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		logger.Error("failed to apply schema", "err", err)
		os.Exit(1)
	}

	walletRepo := repository.NewWalletPGRepository(pool, logger)
	gameyaRepo := repository.NewGameyaPGRepository(pool, logger)
	loanRepo := repository.NewLoanPGRepository(pool, logger)
	trustRepo := repository.NewTrustPGRepository(pool, logger)

	walletSvc := service.NewWalletService(walletRepo, logger)
	gameyaSvc := service.NewGameyaService(gameyaRepo, trustRepo, logger)
	loanSvc := service.NewLoanService(loanRepo, trustRepo, logger)

	r := gin.Default()
	v1 := r.Group("/api/v1", handlers.ActorFromHeaders())
	handlers.NewWalletHTTPHandler(walletSvc).RegisterRoutes(v1)
	handlers.NewGameyaHTTPHandler(gameyaSvc).RegisterRoutes(v1)
	handlers.NewLoanHTTPHandler(loanSvc).RegisterRoutes(v1)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil {
			logger.Error("Server failed", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
	}
	logger.Info("Server exiting")
}
