// Package cmd provides the CLI commands for semroute.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/semroute/semroute/internal/adapter/inbound/stdio"
	mcpadapter "github.com/semroute/semroute/internal/adapter/outbound/mcp"
	"github.com/semroute/semroute/internal/config"
	"github.com/semroute/semroute/internal/domain/search"
	"github.com/semroute/semroute/internal/embeddings"
	"github.com/semroute/semroute/internal/logging"
	"github.com/semroute/semroute/internal/metrics"
	"github.com/semroute/semroute/internal/service"
)

// embeddingModel is the model every catalog entry is scored with.
const embeddingModel = "BAAI/bge-small-en-v1.5"

var rootCmd = &cobra.Command{
	Use:   "semroute [config]",
	Short: "semroute - semantic router for MCP tool-calling agents",
	Long: `semroute sits between an MCP client and a fleet of upstream MCP
servers. Instead of exposing the union of every upstream's tool catalog,
it serves a small diversity-balanced default subset, a search_tools
meta-tool for semantic retrieval over the full catalog, and
load_upstream/unload_upstream for bringing upstreams in and out of
service at runtime. Ordinary tool calls are forwarded transparently to
the upstream that owns the tool.

The single positional argument is the path to the JSON configuration
file (default: ./config.json). All MCP traffic flows over stdio;
diagnostics are JSON lines on stderr.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRouter,
	// The router owns stdout; usage noise belongs on stderr only.
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runRouter(cmd *cobra.Command, args []string) error {
	logger := logging.Setup(os.Stderr, slog.LevelInfo)
	log := logging.For(logger, "main")

	configPath := config.DefaultPath
	if len(args) == 1 {
		configPath = args[0]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error("configuration error during startup",
			logging.Metadata(map[string]any{"error": err.Error()}))
		return err
	}
	log.Info("Configuration loaded successfully",
		logging.Metadata(map[string]any{"upstream_count": len(cfg.MCPServers)}))

	provider, err := embeddings.NewFastEmbedProvider(embeddings.FastEmbedConfig{Model: embeddingModel})
	if err != nil {
		log.Error("failed to initialize embedding model",
			logging.Metadata(map[string]any{"error": err.Error()}))
		return err
	}
	if provider.Dimension() != search.Dimension {
		return fmt.Errorf("embedding model produces %d dimensions, the index requires %d",
			provider.Dimension(), search.Dimension)
	}
	log.Info("Embedding model initialized",
		logging.Metadata(map[string]any{"model": embeddingModel, "dimensions": provider.Dimension()}))

	var cache *embeddings.Cache
	if cfg.Loading.CacheEmbeddings {
		cache, err = embeddings.OpenCache(embeddings.DefaultCachePath())
		if err != nil {
			log.Warn("embedding cache unavailable, continuing without it", "error", err.Error())
			cache = nil
		}
	}
	embedSvc := embeddings.NewService(provider, cache, embeddingModel, logger)
	defer func() {
		if err := embedSvc.Close(); err != nil {
			log.Warn("error closing embedding service", "error", err.Error())
		}
	}()

	index := search.NewIndex()
	mets := metrics.New()
	manager := service.NewDiscoveryManager(cfg, index, embedSvc, mcpadapter.Dial, logger, mets)
	proxy := service.NewToolCallProxy(cfg, manager, logger)
	router := service.NewRouter(manager, proxy, index, embedSvc, logger, mets)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := mets.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				log.Warn("metrics listener failed", "error", err.Error())
			}
		}()
	}

	manager.Startup(ctx)
	log.Info("Discovery completed",
		logging.Metadata(map[string]any{"total_tools": index.Count()}))
	log.Info("MCP server started",
		logging.Metadata(map[string]any{
			"transport":       "stdio",
			"tools_available": index.Count(),
		}))

	transport := stdio.NewTransport(router, logger)
	done := make(chan error, 1)
	go func() {
		done <- transport.Run(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case <-ctx.Done():
		log.Info("interrupt received, shutting down")
	case err := <-done:
		if err != nil {
			log.Error("transport terminated", logging.Metadata(map[string]any{"error": err.Error()}))
		}
	}

	manager.Shutdown(context.Background())
	log.Info("Shutdown complete")
	return nil
}
