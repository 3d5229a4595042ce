package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NeuralTrust/EdgeRouter/pkg/config"
	"github.com/NeuralTrust/EdgeRouter/pkg/infra/certrenew"
	infraLogger "github.com/NeuralTrust/EdgeRouter/pkg/infra/logger"
	"github.com/joho/godotenv"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, closeLogger, err := infraLogger.NewLogger(infraLogger.Options{Level: cfg.Log.Level})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer closeLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	renewer := certrenew.NewRenewer(logger, certrenew.Options{
		Webroot: cfg.ACME.Webroot,
		PIDFile: cfg.Server.PIDFile,
		Certbot: os.Getenv("CERTBOT_BIN"),
	})
	if err := renewer.Renew(ctx); err != nil {
		logger.WithError(err).Error("certificate renewal aborted")
		cancel()
		closeLogger()
		os.Exit(1)
	}
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "./config"
}
