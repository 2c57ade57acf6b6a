// Package main runs the combat and consequence engine behind its gRPC
// action service.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/config"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/npc"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/gameserver"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/narration"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/observability"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/server"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/storage"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/storage/postgres"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/storage/sqlite"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing, cfg.Server.Name)
	if err != nil {
		logger.Fatal("setting up tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flushing traces", zap.Error(err))
		}
	}()

	logger.Info("starting game server",
		zap.String("name", cfg.Server.Name),
		zap.String("grpc_addr", cfg.GRPC.Addr()),
		zap.String("database", cfg.Database.Driver),
		zap.String("narration", cfg.Narration.Provider),
	)

	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}
	defer store.Close()

	contentStart := time.Now()
	registry, err := npc.LoadRegistry(cfg.Content.BlueprintDir)
	if err != nil {
		logger.Fatal("loading blueprints", zap.Error(err))
	}
	logger.Info("blueprints loaded",
		zap.String("dir", cfg.Content.BlueprintDir),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	var primary narration.Narrator = narration.NewTemplateNarrator()
	if cfg.Narration.Provider == "anthropic" {
		primary = narration.NewAnthropicNarrator(cfg.Narration, logger)
	}
	narrator := narration.WithFallback(primary, narration.NewTemplateNarrator(), logger)

	svc := gameserver.NewActionService(store, registry, narrator, cfg.Rules, logger)

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(gameserver.LoggingInterceptor(logger)),
	)
	gameserver.RegisterActionServiceServer(grpcServer, gameserver.NewGRPCServer(svc, logger))
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(gameserver.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr())
	if err != nil {
		logger.Fatal("listening", zap.String("addr", cfg.GRPC.Addr()), zap.Error(err))
	}

	lifecycle := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)
	lifecycle.Add("grpc", server.GRPCService(grpcServer, lis, healthSrv))

	logger.Info("game server ready", zap.Duration("startup", time.Since(start)))
	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("game server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

// openStore connects the configured backend and brings its schema up to date.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (storage.Store, error) {
	if cfg.Driver == "sqlite" {
		logger.Info("opening sqlite store", zap.String("path", cfg.SQLitePath))
		return sqlite.Open(cfg.SQLitePath)
	}

	version, dirty, err := postgres.Migrate(cfg.DSN(), 0)
	if err != nil {
		return nil, err
	}
	logger.Info("postgres schema ready", zap.Uint("version", version), zap.Bool("dirty", dirty))

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return postgres.NewStore(pool), nil
}
