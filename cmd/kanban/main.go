package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kanban/internal/auth"
	"kanban/internal/server"
	"kanban/internal/storage/sqlite"
	"kanban/internal/util"
)

const devSecret = "kanban-dev-secret-change-me"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("unable to load .env", slog.String("error", err.Error()))
	}

	addrFlag := flag.String("addr", util.EnvOrDefault("KANBAN_ADDR", ":8080"), "HTTP listen address")
	dbFlag := flag.String("db", util.EnvOrDefault("KANBAN_DB_PATH", "data/kanban.db"), "Path to sqlite database file")
	staticFlag := flag.String("static", util.EnvOrDefault("KANBAN_STATIC_DIR", "web"), "Directory with index.html and static assets")
	secretFlag := flag.String("jwt-secret", util.EnvOrDefault("KANBAN_JWT_SECRET", devSecret), "HMAC secret for access tokens")
	ttlFlag := flag.Duration("token-ttl", util.EnvDurationOrDefault("KANBAN_TOKEN_TTL", 30*time.Minute), "Access token lifetime")
	requireTokenFlag := flag.Bool("require-token", util.EnvBoolOrDefault("KANBAN_REQUIRE_TOKEN", false), "Reject protected requests without a bearer token")
	originsFlag := flag.String("cors-origins", util.EnvOrDefault("KANBAN_CORS_ORIGINS", "*"), "Comma separated CORS origins")
	flag.Parse()

	logger.Info("Kanban board server")
	if *secretFlag == devSecret {
		logger.Warn("using development token secret; set KANBAN_JWT_SECRET in production")
	}

	tokens, err := auth.NewIssuer(*secretFlag, *ttlFlag)
	if err != nil {
		logger.Error("invalid token settings", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := sqlite.Open(*dbFlag, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	srv := server.New(store, logger, server.Options{
		StaticDir:      *staticFlag,
		Tokens:         tokens,
		RequireToken:   *requireTokenFlag,
		AllowedOrigins: util.SplitList(*originsFlag),
	})

	httpServer := &http.Server{
		Addr:              *addrFlag,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr), slog.Bool("require_token", *requireTokenFlag))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
