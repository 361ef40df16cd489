// cmd/coreserver is a thin wrapper around internal/coreserver.Server:
// it owns process lifecycle (signal handling, the telemetry database
// connection, startup logging) and nothing else.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"corelang/internal/buildstore"
	"corelang/internal/coreserver"
	"corelang/internal/pipeline"
)

func main() {
	addr := flag.String("addr", ":8765", "listen address")
	dsn := flag.String("db", "coreserver-telemetry.db", "telemetry database DSN")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	logFDLimit(logger)

	store, err := buildstore.Open(*dsn)
	if err != nil {
		log.Fatalf("coreserver: opening telemetry store: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("coreserver: migrating telemetry store: %v", err)
	}

	srv := coreserver.New(*addr, store, pipeline.DefaultOptions, logger)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("coreserver: %v", err)
	}
}

// logFDLimit reports the process's open-file-descriptor limit at
// startup — one websocket connection holds one fd for the life of its
// compile_core call, so a low soft limit caps concurrent compiles.
func logFDLimit(logger *slog.Logger) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		logger.Warn("coreserver: could not read fd limit", "error", err)
		return
	}
	logger.Info("coreserver fd limit", "soft", rlimit.Cur, "hard", rlimit.Max)
}
