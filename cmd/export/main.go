package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/config"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/export"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/repository"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/schema"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dialect := flag.String("dialect", cfg.Export.Dialect, "target database: sqlite, postgres or mysql")
	dsn := flag.String("dsn", cfg.Export.DSN, "target data source name")
	tables := flag.String("tables", "", "comma-separated tables to export (default: all)")
	pageSize := flag.Int("page-size", 500, "rows read from SurrealDB per query")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})
	if err := db.Connect(ctx); err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	target, d, err := export.Open(ctx, *dialect, *dsn)
	if err != nil {
		slog.Error("failed to open export target", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = target.Close() }()

	ex := export.New(export.Config{
		Source:   repository.NewTableRepository(db),
		Registry: schema.New(),
		DB:       target,
		Dialect:  d,
		Tables:   splitList(*tables),
		PageSize: *pageSize,
	})

	counts, err := ex.Run(ctx)
	if err != nil {
		slog.Error("export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-28s %d\n", name, counts[name])
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
