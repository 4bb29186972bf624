package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"paygrid-api/internal/config"
	"paygrid-api/internal/logger"
	"paygrid-api/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// @title           PayGrid API
// @version         1.0
// @description     Payment-challenge proxy and service catalog for x402-gated APIs

// @host      localhost:8000
// @BasePath  /api/v1
func main() {
	if err := godotenv.Load(); err != nil {
		// It's often okay if the .env file is missing, especially in production
		// where variables might be set directly in the environment.
		log.Printf("Warning: .env file not found: %v", err)
	}

	// Initialize logger first
	logger.InitLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize server", zap.Error(err))
	}

	router := gin.Default()
	srv.InitializeRoutes(router)

	if err := srv.Run(ctx, router); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}

	logger.Info("server exited")
	_ = logger.Sync()
}
