package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veglens/veglens"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML or JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := veglens.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = veglens.LoadConfig(*configPath)
		if err != nil {
			slog.Error("loading config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}

	// Override from environment variables.
	if v := os.Getenv("VEGLENS_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("VEGLENS_SEED_PATH"); v != "" {
		cfg.SeedPath = v
	}
	if v := os.Getenv("VEGLENS_CHAT_BASE_URL"); v != "" {
		cfg.Chat.BaseURL = v
	}
	if v := os.Getenv("VEGLENS_EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("VEGLENS_CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}
	if v := os.Getenv("VEGLENS_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("VEGLENS_CHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("VEGLENS_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("VEGLENS_CHAT_PROVIDER"); v != "" {
		cfg.Chat.Provider = v
	}
	if v := os.Getenv("VEGLENS_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}

	// Fallback: check well-known provider env vars for API keys.
	if cfg.Chat.APIKey == "" && cfg.Chat.Provider == "openai" {
		cfg.Chat.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	apiKey := os.Getenv("VEGLENS_API_KEY")
	corsOrigins := os.Getenv("VEGLENS_CORS_ORIGINS")

	engine, err := veglens.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	h := newHandler(engine)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /menu/analyze", h.handleAnalyze)
	mux.HandleFunc("POST /review", h.handleReview)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> request-id -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // classification fans out to an LLM per item
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
