package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/darkhorizon/internal/pkg/config"
	"github.com/samirrijal/darkhorizon/internal/pkg/logging"
)

var upFiles = []string{
	"migrations/001_init_extensions.sql",
	"migrations/002_spots.sql",
}

var downFiles = []string{
	"migrations/002_spots.down.sql",
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: migrate <up|down>")
		os.Exit(2)
	}

	cfg, err := config.Load("darkhorizon-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		slog.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var files []string
	switch os.Args[1] {
	case "up":
		files = upFiles
	case "down":
		files = downFiles
	default:
		slog.Error("unknown command", "command", os.Args[1])
		os.Exit(2)
	}

	if err := apply(ctx, pool, files); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations applied", "direction", os.Args[1], "files", len(files))
}

func apply(ctx context.Context, pool *pgxpool.Pool, files []string) error {
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
		slog.Info("applied", "file", f)
	}
	return nil
}
