package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/claimgraph/mcp-claimgraph-go/internal/database"
	"github.com/claimgraph/mcp-claimgraph-go/internal/embeddings"
	"github.com/claimgraph/mcp-claimgraph-go/internal/engine"
	"github.com/claimgraph/mcp-claimgraph-go/internal/metrics"
	"github.com/claimgraph/mcp-claimgraph-go/internal/server"
)

var (
	libsqlURL   = flag.String("libsql-url", "", "libSQL database URL (default: file:./claimgraph.db)")
	authToken   = flag.String("auth-token", "", "Authentication token for remote databases")
	transport   = flag.String("transport", "stdio", "Transport to use: stdio or sse")
	addr        = flag.String("addr", ":8080", "Address to listen on when using SSE transport")
	sseEndpoint = flag.String("sse-endpoint", "/sse", "SSE endpoint path when using SSE transport")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal, closing server...")
		cancel()
	}()

	// Initialize database configuration
	config := database.NewConfig()

	// Initialize metrics (noop if disabled)
	metrics.InitFromEnv()

	// Override with command line flags if provided
	if *libsqlURL != "" {
		config.URL = *libsqlURL
	}
	if *authToken != "" {
		config.AuthToken = *authToken
	}

	// Create database manager
	db, err := database.NewDBManager(config)
	if err != nil {
		log.Fatalf("Failed to create database manager: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	// Embeddings provider from env, adapted to the configured schema dims.
	// Logs go to stderr so the stdio transport stays clean.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	provider := embeddings.WrapToDims(embeddings.NewFromEnv(), config.EmbeddingDims)
	if provider == nil {
		logger.Warn("no embeddings provider configured; ingest and search will fail")
	}

	eng := engine.New(db, provider, logger)
	mcpServer := server.NewMCPServer(eng)

	// Run the server with selected transport
	log.Println("Starting MCP claim graph server...")
	switch *transport {
	case "stdio":
		go func() {
			if err := mcpServer.Run(ctx); err != nil {
				log.Printf("Server error: %v", err)
			}
		}()
	case "sse":
		go func() {
			if err := mcpServer.RunSSE(ctx, *addr, *sseEndpoint); err != nil {
				log.Printf("SSE server error: %v", err)
			}
		}()
	default:
		log.Fatalf("unknown transport: %s (expected: stdio or sse)", *transport)
	}

	<-ctx.Done()

	log.Println("Server stopped")
}
