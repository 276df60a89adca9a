package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/i2y/apollo-mcp/configs"
	"github.com/i2y/apollo-mcp/internal/adapter/inbound/mcphttp"
	"github.com/i2y/apollo-mcp/internal/adapter/inbound/mcpserver"
	"github.com/i2y/apollo-mcp/internal/adapter/outbound/apollo"
	"github.com/i2y/apollo-mcp/internal/adapter/outbound/catalog"
	"github.com/i2y/apollo-mcp/internal/usecase"
)

const (
	serviceName = "apollo-mcp"
	version     = "0.1.0"
)

// CLI holds the command line flags. Empty values leave the configuration
// from file and environment untouched.
type CLI struct {
	Transport string           `help:"Transport mode: stdio or http." placeholder:"MODE"`
	APIKey    string           `name:"api-key" help:"Apollo.io API key. Overrides APOLLO_IO_API_KEY." placeholder:"KEY"`
	Listen    string           `help:"Listen address for the http transport." placeholder:"ADDR"`
	LogLevel  string           `name:"log-level" help:"Log level: debug, info, warn or error." placeholder:"LEVEL"`
	Config    string           `help:"Path to a YAML configuration file." placeholder:"FILE"`
	Version   kong.VersionFlag `help:"Print version and exit."`
}

func main() {
	// === Command Line Flags ===
	var cli CLI
	kong.Parse(&cli,
		kong.Name(serviceName),
		kong.Description("MCP server exposing the Apollo.io people and company API as tools."),
		kong.Vars{"version": version},
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Configuration ===
	cfg, err := configs.Load(configs.Config{
		ConfigFile: cli.Config,
		APIKey:     cli.APIKey,
		Transport:  cli.Transport,
		ListenAddr: cli.Listen,
		LogLevel:   cli.LogLevel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// === Logging ===
	logger, closeLog := newLogger(cfg)
	defer closeLog()
	slog.SetDefault(logger)
	logger.Info("Logger initialized.", slog.String("level", cfg.ParsedLogLevel().String()), slog.String("transport", cfg.Transport))

	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("Server exited with error.", slog.Any("error", err))
		closeLog()
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *configs.Config, logger *slog.Logger) error {
	// === OpenTelemetry Initialization ===
	shutdownOtel, err := initOtelProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry providers.", slog.Any("error", err))
		}
	}()

	// === Dependency Injection ===
	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	logger.Debug("HTTP Client configured.", slog.Duration("timeout", cfg.HTTPClientTimeout))

	client, err := apollo.New(httpClient, apollo.Config{
		APIKey:        cfg.APIKey,
		BaseURL:       cfg.BaseURL,
		LegacyBaseURL: cfg.LegacyBaseURL,
		AppBaseURL:    cfg.AppBaseURL,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create Apollo client: %w", err)
	}

	cat := catalog.New(logger)
	dispatcher, err := usecase.NewDispatcher(cat, client, otel.GetMeterProvider(), logger)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	srv, err := mcpserver.New(ctx, mcpserver.Info{Name: serviceName, Version: version},
		usecase.NewServeToolsUseCase(cat, logger), dispatcher.Call, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// === Transport Mode Selection ===
	switch cfg.Transport {
	case configs.TransportStdio:
		logger.Info("Starting in STDIO mode")
		err := srv.ServeStdio(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio server: %w", err)
		}
		logger.Info("STDIO server stopped.")
		return nil

	case configs.TransportHTTP:
		mux := http.NewServeMux()
		mcphttp.NewHandlers(srv, logger).RegisterRoutes(mux)
		httpServer := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("MCP HTTP server starting.", slog.String("address", cfg.ListenAddr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("MCP HTTP server failed to start.", slog.Any("error", err))
				stop()
			}
		}()

		// Wait for interrupt signal.
		<-ctx.Done()

		// === Server Shutdown ===
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("Server shut down gracefully.")
		return nil

	default:
		return fmt.Errorf("invalid transport mode %q", cfg.Transport)
	}
}

// newLogger logs to stderr, except in stdio mode where stdout carries the
// protocol and stderr may be swallowed by the host: there it logs to a file.
func newLogger(cfg *configs.Config) (*slog.Logger, func()) {
	opts := &slog.HandlerOptions{Level: cfg.ParsedLogLevel()}
	if cfg.Transport != configs.TransportStdio {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), func() {}
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		// Fall back to discard if the log file cannot be opened.
		return slog.New(slog.NewTextHandler(io.Discard, opts)), func() {}
	}
	return slog.New(slog.NewTextHandler(logFile, opts)), func() { _ = logFile.Close() }
}

// initOtelProvider initializes the OpenTelemetry SDK and sets up the OTLP trace
// and metric exporters over one gRPC connection.
// It returns a shutdown function to be called on application exit.
func initOtelProvider(cfg *configs.Config) (func(context.Context) error, error) {
	ctx := context.Background()

	if cfg.OtelExporterOtlpEndpoint == "" {
		slog.Info("OTLP endpoint not set, OpenTelemetry export disabled.")
		return func(context.Context) error { return nil }, nil
	}

	slog.Info("Initializing OTLP exporter.", slog.String("endpoint", cfg.OtelExporterOtlpEndpoint))

	var creds grpc.DialOption
	if cfg.OtelExporterOtlpSecure {
		creds = grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(nil, ""))
	} else {
		creds = grpc.WithTransportCredentials(insecure.NewCredentials())
		slog.Warn("Using insecure connection for OTLP exporter.")
	}

	conn, err := grpc.NewClient(cfg.OtelExporterOtlpEndpoint, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to OTLP endpoint: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = metricExporter.Shutdown(ctx)
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(r),
	)
	otel.SetMeterProvider(mp)

	slog.Info("OpenTelemetry TracerProvider and MeterProvider configured.")

	return func(ctx context.Context) error {
		tracerErr := tp.Shutdown(ctx)
		meterErr := mp.Shutdown(ctx)
		connErr := conn.Close()
		return errors.Join(tracerErr, meterErr, connErr)
	}, nil
}
