package builder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/raadyn/kb-retrieval/internal/api"
	sessionsapi "github.com/raadyn/kb-retrieval/internal/api/sessions"
	tenantsapi "github.com/raadyn/kb-retrieval/internal/api/tenants"
	"github.com/raadyn/kb-retrieval/internal/cache"
	"github.com/raadyn/kb-retrieval/internal/config"
	"github.com/raadyn/kb-retrieval/internal/integration/embedding"
	"github.com/raadyn/kb-retrieval/internal/integration/vectorindex"
	"github.com/raadyn/kb-retrieval/internal/pkg/logger"
	"github.com/raadyn/kb-retrieval/internal/repository"
	"github.com/raadyn/kb-retrieval/internal/usecase/ingestion"
	"github.com/raadyn/kb-retrieval/internal/usecase/retrieval"
	"github.com/raadyn/kb-retrieval/internal/usecase/tenant"
)

func Build() (*App, error) {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	log.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
	)

	// Setup database connection
	db, err := setupDatabase(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}

	// Run database migrations
	log.Info("Running database migrations")
	if err := repository.RunMigrations(cfg.DatabaseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("Database migrations completed successfully")

	// Initialize repositories
	tenantRepo := repository.NewTenantPostgres(db)
	documentRepo := repository.NewDocumentPostgres(db)
	log.Info("Repositories initialized")

	// Initialize external service connectors (with mock support)
	var embedder interface {
		Embed(ctx context.Context, text string) ([]float64, error)
		EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	}
	var index interface {
		retrieval.VectorIndex
		ingestion.VectorIndex
		tenant.VectorIndex
	}

	if cfg.EnableMocks {
		log.Info("Using mock connectors for external services")
		embedder = embedding.NewMockConnector(cfg.EmbeddingConnectorCfg.Dimensions, log)
		index = vectorindex.NewMockConnector(log)
	} else {
		log.Info("Using real connectors for external services")
		embedder = embedding.NewConnector(cfg.EmbeddingConnectorCfg, log)
		index = vectorindex.NewConnector(cfg.IndexConnectorCfg, log)
	}

	// Initialize cache tiers
	cacheService := cache.NewService(cache.Config{
		EmbeddingCapacity: cfg.CacheCfg.EmbeddingCapacity,
		EmbeddingTTL:      cfg.CacheCfg.EmbeddingTTL,
		SemanticCapacity:  cfg.CacheCfg.SemanticCapacity,
		SemanticThreshold: cfg.CacheCfg.SemanticThreshold,
		SemanticTTL:       cfg.CacheCfg.SemanticTTL,
		SessionIdleWindow: cfg.RetrievalCfg.SessionInactivityWindow,
	}, log)
	log.Info("Cache tiers initialized")

	// Initialize use cases
	tenantUC := tenant.NewUsecase(tenantRepo, documentRepo, index, cacheService, log)
	ingestionUC := ingestion.NewUsecase(tenantRepo, documentRepo, embedder, index, cfg.IngestionCfg, log)
	retrievalUC := retrieval.NewUsecase(
		tenantRepo,
		embedder,
		index,
		cacheService,
		cfg.RetrievalCfg,
		cfg.WarmupQueries,
		log,
	)
	log.Info("Use cases initialized")

	// Setup API handlers
	tenantsHandler := tenantsapi.NewHandler(tenantUC, ingestionUC, retrievalUC)
	sessionsHandler := sessionsapi.NewHandler(retrievalUC)
	log.Info("API handlers initialized")

	// Setup router
	router := api.SetupRouter(tenantsHandler, sessionsHandler, log)
	log.Info("HTTP router configured")

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
	)

	return &App{
		server:        server,
		db:            db,
		cache:         cacheService,
		sweepInterval: cfg.RetrievalCfg.SessionSweepInterval,
		logger:        log,
	}, nil
}
