package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/propindex/internal/config"
	dbRedis "github.com/kailas-cloud/propindex/internal/db/redis"
	"github.com/kailas-cloud/propindex/internal/domain"
	domindex "github.com/kailas-cloud/propindex/internal/domain/index"
	"github.com/kailas-cloud/propindex/internal/domain/search/filter"
	logpkg "github.com/kailas-cloud/propindex/internal/logger"
	"github.com/kailas-cloud/propindex/internal/metrics"
	"github.com/kailas-cloud/propindex/internal/repository/embcache"
	indexrepo "github.com/kailas-cloud/propindex/internal/repository/index"
	"github.com/kailas-cloud/propindex/internal/repository/memindex"
	chiTransport "github.com/kailas-cloud/propindex/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/propindex/internal/transport/openai"
	"github.com/kailas-cloud/propindex/internal/transport/projects"
	collectionuc "github.com/kailas-cloud/propindex/internal/usecase/collection"
	composeuc "github.com/kailas-cloud/propindex/internal/usecase/compose"
	embeddinguc "github.com/kailas-cloud/propindex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/propindex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/propindex/internal/usecase/search"
	"github.com/kailas-cloud/propindex/internal/usecase/syncer"
	"github.com/kailas-cloud/propindex/internal/version"
)

// vectorIndex is what the composition root needs from either backend.
type vectorIndex interface {
	Ping(ctx context.Context) error
	GetOrCreateCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, e domindex.Entry) error
	Delete(ctx context.Context, collection, id string) error
	Count(ctx context.Context, collection string) (int, error)
	Query(ctx context.Context, collection string, vector []float32, k int, expr filter.Expression) ([]domindex.Hit, error)
}

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting propindex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("collection", cfg.Index.Collection),
	)

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSyncMetrics()

	ctx := context.Background()

	// Vector store. Valkey and Redis 8 speak the same FT.* dialect through one client.
	var (
		index vectorIndex
		cache embcache.Store
	)
	switch cfg.Database.Driver {
	case config.DriverValkey, config.DriverRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database")

		index = indexrepo.New(store, cfg.Index.KeyPrefix, cfg.Embedding.Dimensions, domindex.ProjectLayout()).
			WithHNSW(indexrepo.HNSWConfig{M: cfg.Index.HNSWM, EFConstruct: cfg.Index.HNSWEFConstruct})
		cache = store
	case config.DriverMemory:
		mem, err := memindex.New(cfg.Embedding.Dimensions)
		if err != nil {
			logger.Fatal("Failed to create in-memory index", zap.Error(err))
		}
		index = mem
		logger.Warn("Using in-memory vector index; data is lost on restart")
	}

	// Embedding generators: one per instruction so query and document spaces
	// can differ for instruction-tuned models.
	docGen := buildGenerator(cfg.Embedding, cfg.Embedding.DocumentInstruction, cfg.Index.KeyPrefix, cache, logger)
	queryGen := buildGenerator(cfg.Embedding, cfg.Embedding.QueryInstruction, cfg.Index.KeyPrefix, cache, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cache != nil && cfg.Embedding.CacheTTL() > 0),
	)

	// Canonical store and owners directory. Interfaces stay nil (not typed nil
	// pointers) when unconfigured so the services can detect absence.
	var (
		hydrator searchuc.Hydrator
		lister   interface {
			ListPage(ctx context.Context, skip int) ([]json.RawMessage, error)
		}
		canonicalPing healthuc.Pinger
		owners        composeuc.OwnerLookup
	)
	if cfg.Canonical.BaseURL != "" {
		canonical := projects.NewClient(cfg.Canonical.BaseURL,
			projects.WithTimeout(time.Duration(cfg.Canonical.TimeoutSec)*time.Second),
			projects.WithPageSize(cfg.Canonical.PageSize),
			projects.WithRateLimit(cfg.Canonical.RateLimitRPS),
			projects.WithLogger(logger),
		)
		hydrator = canonical
		lister = canonical
		canonicalPing = canonical
	} else {
		logger.Warn("canonical.base_url not set: resync disabled, search ranks on index metadata")
	}
	if cfg.Owners.BaseURL != "" {
		owners = projects.NewOwnerClient(cfg.Owners.BaseURL, time.Duration(cfg.Owners.TimeoutSec)*time.Second)
	}

	compositor := composeuc.New(owners, time.Duration(cfg.Owners.TimeoutSec)*time.Second, logger)

	syncSvc, err := syncer.New(
		compositor, docGen, index, lister,
		cfg.Index.Collection, cfg.Index.Entity, cfg.Sync.Concurrency, logger,
	)
	if err != nil {
		logger.Fatal("Failed to create sync controller", zap.Error(err))
	}
	defer syncSvc.Release()

	searchSvc := searchuc.New(queryGen, index, hydrator, cfg.Index.Entity, searchuc.Options{
		CandidatePool:        cfg.Search.CandidatePool,
		HydrationConcurrency: cfg.Search.HydrationConcurrency,
		PrefilterPrice:       cfg.Search.PricePrefilter,
	}, logger)

	collSvc := collectionuc.New(index, docGen)
	if err := collSvc.Ensure(ctx, cfg.Index.Collection); err != nil {
		logger.Fatal("Failed to ensure default collection", zap.Error(err), zap.String("collection", cfg.Index.Collection))
	}

	healthSvc := healthuc.New(index, docGen, canonicalPing)

	server := chiTransport.NewServer(docGen, collSvc, syncSvc, searchSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildGenerator assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction,
// wrapped in a Generator that enforces the timeout and the dimension.
func buildGenerator(
	cfg config.EmbeddingConfig,
	instruction, keyPrefix string,
	cache embcache.Store,
	logger *zap.Logger,
) *embeddinguc.Generator {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Dimensions:     cfg.Dimensions,
		SendDimensions: cfg.SendDimensions,
		Provider:       cfg.Provider,
		Logger:         logger,
	})

	var embedder domain.Embedder = base
	if cache != nil && cfg.CacheTTL() > 0 {
		embedder = embcache.New(base, cache, keyPrefix+"emb:"+cfg.Model+":", cfg.CacheTTL(),
			metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, logger)

	// Instruction prefix is outermost so the cache key includes it.
	embedder = domain.NewInstructionEmbedder(embedder, instruction)

	return embeddinguc.NewGenerator(embedder, cfg.Model, cfg.Dimensions, cfg.Timeout())
}
