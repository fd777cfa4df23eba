package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/uigen/internal/api"
	"github.com/kalambet/uigen/internal/config"
	"github.com/kalambet/uigen/internal/failurelog"
	"github.com/kalambet/uigen/internal/llm"
	"github.com/kalambet/uigen/internal/pipeline"
	"github.com/kalambet/uigen/internal/storage"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (foreground)",
	Long: `Run the HTTP API in the foreground.

With --mcp the same operations are also served as MCP tools over
stdin/stdout, for use by MCP-capable assistants.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP over stdio")
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func runServer(withMCP bool) error {
	banner()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	if !cfg.HasAPIKey() {
		printWarning("OPENAI_API_KEY is not set; generation requests will fail")
	}

	timeout, err := time.ParseDuration(cfg.LLM.Timeout)
	if err != nil {
		slog.Warn("invalid llm timeout, using client default", "value", cfg.LLM.Timeout, "error", err)
		timeout = 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	failures, err := failurelog.Open(cfg.Log.FailureFile)
	if err != nil {
		slog.Warn("failure log unavailable, failures go to the process log only", "error", err)
		failures = failurelog.Nop()
	}
	defer failures.Close()

	client := llm.NewClient(llm.Options{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: timeout,
	})
	if cfg.HasAPIKey() {
		if err := llm.CheckModel(ctx, client, client.Model(), os.Stderr); err != nil {
			printWarning("%v", err)
		}
	}

	svc := pipeline.NewService(pipeline.NewGenerator(client), store, failures)

	handler := api.NewHandler(api.Deps{
		Generator:      svc,
		Versions:       store,
		AllowedOrigins: api.ParseOrigins(cfg.Server.AllowedOrigins),
	})

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("uigen listening", "addr", cfg.Addr(), "model", client.Model(), "failure_log", failures.Path())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Generator: svc,
			Versions:  store,
			Version:   version,
		})
		stdio := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			slog.Info("MCP server started (stdio transport)")
			if err := stdio.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
