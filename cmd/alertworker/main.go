package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NasaVasa/cryptoalerts/internal/app"
	"github.com/NasaVasa/cryptoalerts/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	application, err := app.NewWorker(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize alertworker:", err)
		os.Exit(1)
	}
	defer application.Shutdown()

	if err := application.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "alertworker error:", err)
		application.Shutdown()
		os.Exit(1)
	}
}
