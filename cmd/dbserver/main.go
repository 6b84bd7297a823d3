// Command dbserver serves the SQLite database tools over stdin/stdout.
//
// Stdout carries the protocol, so logs go to ADK_MCP_LOG_FILE (or stderr
// when it is "-").
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/SystemSolution21/adk-mcp/dbtools"
	"github.com/SystemSolution21/adk-mcp/internal/config"
	"github.com/SystemSolution21/adk-mcp/internal/logctx"
	"github.com/SystemSolution21/adk-mcp/journal"
	"github.com/SystemSolution21/adk-mcp/journal/memory"
	"github.com/SystemSolution21/adk-mcp/journal/redis"
	"github.com/SystemSolution21/adk-mcp/registry"
	"github.com/SystemSolution21/adk-mcp/stdio"
)

const serverName = "sqlite-db-mcp-server"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serverName, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	db, err := dbtools.Open(ctx, cfg.DBPath, cfg.Seed)
	if err != nil {
		log.ErrorContext(ctx, "dbserver.db.fail", slog.String("path", cfg.DBPath), slog.String("err", err.Error()))
		return err
	}
	defer func() { _ = db.Close() }()

	reg, err := registry.New()
	if err != nil {
		return err
	}
	if err := dbtools.Register(reg, db); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	j, closeJournal, err := newJournal(ctx, cfg)
	if err != nil {
		log.ErrorContext(ctx, "dbserver.journal.fail", slog.String("err", err.Error()))
		return err
	}
	defer func() { _ = closeJournal() }()

	opts := []stdio.Option{
		stdio.WithLogger(log),
		stdio.WithMaxFrameSize(cfg.MaxFrameBytes),
		stdio.WithCallTimeout(cfg.CallTimeout),
		stdio.WithJournal(j),
	}
	if cfg.Pipelining {
		opts = append(opts, stdio.WithPipelining(cfg.MaxInFlight))
	}

	log.InfoContext(ctx, "dbserver.start",
		slog.String("name", serverName),
		slog.String("db_path", cfg.DBPath),
		slog.Bool("pipelining", cfg.Pipelining),
		slog.Bool("redis_journal", cfg.RedisAddr != ""),
	)
	return stdio.NewHandler(reg, opts...).Serve(ctx)
}

// newLogger builds the JSON logger decorated with session context. The
// returned func closes the log file, if any.
func newLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}

	var (
		w       io.Writer = os.Stderr
		closeFn           = func() error { return nil }
	)
	if cfg.LogFile != "" && cfg.LogFile != "-" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closeFn = f, f.Close
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(logctx.Handler{Handler: h}).With(slog.String("server", serverName)), closeFn, nil
}

// newJournal uses Redis when REDIS_ADDR is set and an in-memory ring
// otherwise.
func newJournal(ctx context.Context, cfg config.Config) (journal.Journal, func() error, error) {
	if cfg.RedisAddr == "" {
		return memory.New(0), func() error { return nil }, nil
	}
	client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	j := redis.New(redis.Config{Client: client, Key: cfg.JournalKey, MaxLen: cfg.JournalMaxLen})
	return j, j.Close, nil
}
