package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/GraysonCAdams/amazon-ynab-sync/internal/config"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/listener"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/logging"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	svc := listener.NewService(db, cfg, logging.New())
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
