package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"corelang/internal/buildstore"
	"corelang/internal/coreserver"
	"corelang/internal/pipeline"
)

func runServer(addr string, store *buildstore.Store) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	srv := coreserver.New(addr, store, pipeline.DefaultOptions, logger)
	return srv.Run(ctx)
}
