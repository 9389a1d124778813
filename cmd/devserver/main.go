package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/medvolt/scanblur/internal/devserver"
	"github.com/medvolt/scanblur/internal/devserver/config"
	"github.com/medvolt/scanblur/internal/devserver/presign"
	"github.com/medvolt/scanblur/internal/devserver/timestore"
	"github.com/medvolt/scanblur/internal/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSON(os.Stderr)

	var store timestore.Store
	if cfg.DatabaseDSN != "" {
		pg, err := timestore.NewPostgresStore(cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("time store init failed: %v", err)
		}
		store = pg
	} else {
		store = timestore.NewMemoryStore()
	}
	defer store.Close()

	srv := devserver.New(cfg, logger, presign.NewService(cfg), store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("devserver error: %v", err)
	}
}
