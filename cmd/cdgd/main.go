package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/neurobridge-cdg/internal/app"
	"github.com/yungbote/neurobridge-cdg/internal/platform/envutil"
	"github.com/yungbote/neurobridge-cdg/internal/platform/logger"
)

func main() {
	log, err := logger.NewWithLevel(envutil.String("LOG_MODE", "development"), envutil.String("LOG_LEVEL", ""))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := app.LoadConfig(log)
	application, err := app.New(ctx, log, cfg)
	if err != nil {
		log.Error("init app failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		log.Error("server stopped", "error", err)
		application.Close()
		log.Sync()
		os.Exit(1)
	}
	log.Info("server shut down cleanly")
}
