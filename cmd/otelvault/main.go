// Otelvault is a telemetry vault daemon: it ingests OTLP logs, traces,
// and metrics over gRPC and serves them back through a small HTTP query
// API.
//
// The binary starts two listeners: the OTLP collector endpoint
// (LogsService, TraceService, MetricsService) and the read-side HTTP
// server. Storage is selected by configuration: in-memory for
// development, PostgreSQL for anything durable.
//
// Configuration is loaded from ~/.config/otelvault/config.yaml and
// OTELVAULT_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults (in-memory storage)
//	otelvault
//
//	# Start against PostgreSQL with a custom config file
//	otelvault --config /etc/otelvault/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/otelvault/otelvault/internal/config"
	"github.com/otelvault/otelvault/internal/ingest"
	"github.com/otelvault/otelvault/internal/logging"
	"github.com/otelvault/otelvault/internal/query"
	"github.com/otelvault/otelvault/internal/server"
	"github.com/otelvault/otelvault/internal/storage"
	"github.com/otelvault/otelvault/internal/telemetry"
)

// telemetryShutdownTimeout bounds the final flush of self-telemetry so a
// dead collector endpoint cannot stall process exit.
const telemetryShutdownTimeout = 5 * time.Second

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/otelvault/config.yaml)")
	flag.Parse()
	args := flag.Args()

	// Handle subcommands
	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  otelvault           Start the otelvault daemon\n")
			fmt.Fprintf(os.Stderr, "  otelvault version   Show version information\n")
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("otelvault\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts both otelvault listeners and blocks until ctx is cancelled.
//
// Startup order:
//  1. Loads and validates configuration
//  2. Initializes the logger and self-telemetry
//  3. Opens the storage backend
//  4. Wires the ingestion service into the OTLP gRPC server
//  5. Starts the gRPC ingest and HTTP query listeners
//  6. Drains both listeners on context cancellation
//
// Returns nil on graceful shutdown.
func run(ctx context.Context, configPath string) error {
	// With no explicit config file, make sure the default directory
	// exists so operators can drop a config.yaml into it later.
	if configPath == "" {
		if err := config.EnsureConfigDir(); err != nil {
			return fmt.Errorf("failed to prepare config directory: %w", err)
		}
	}

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger) // Best-effort sync on shutdown
	}()

	logger.Info("starting otelvault",
		zap.String("version", version),
		zap.String("grpc_addr", cfg.Server.GRPCAddr),
		zap.String("http_addr", cfg.HTTP.ListenAddr),
		zap.String("storage_backend", cfg.Storage.Backend))

	tel := telemetry.New(ctx, cfg.Telemetry, logger)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("storage close failed", zap.Error(err))
		}
	}()

	svc := ingest.NewService(store, logger)

	ingestSrv, err := server.New(cfg.Server, svc, logger)
	if err != nil {
		return fmt.Errorf("failed to create ingest server: %w", err)
	}

	querySrv, err := query.NewServer(store, logger, cfg.HTTP)
	if err != nil {
		return fmt.Errorf("failed to create query server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := ingestSrv.Start(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("ingest server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := querySrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("query server: %w", err)
		}
		return nil
	})

	// Drain both listeners when the context is cancelled, whether by a
	// signal or by the other listener failing.
	g.Go(func() error {
		<-gctx.Done()

		ingestCtx, ingestCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer ingestCancel()
		if err := ingestSrv.Shutdown(ingestCtx); err != nil {
			logger.Warn("ingest server shutdown incomplete", zap.Error(err))
		}

		queryCtx, queryCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout.Duration())
		defer queryCancel()
		if err := querySrv.Shutdown(queryCtx); err != nil {
			logger.Warn("query server shutdown incomplete", zap.Error(err))
		}

		return nil
	})

	return g.Wait()
}
