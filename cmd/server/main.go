package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/skinmatch/backend/config"
	httpDelivery "github.com/skinmatch/backend/internal/delivery/http"
	"github.com/skinmatch/backend/internal/domain"
	"github.com/skinmatch/backend/internal/infrastructure/cache"
	"github.com/skinmatch/backend/internal/infrastructure/retailer"
	"github.com/skinmatch/backend/internal/infrastructure/store"
	"github.com/skinmatch/backend/internal/usecase"
)

// productStore is the combined persistence surface the pipeline needs:
// candidate selection plus verification write-back.
type productStore interface {
	domain.ProductStore
	domain.VerificationStore
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Server.Environment)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting skinmatch backend",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Type),
		zap.String("cache", cfg.Cache.Type))

	// Infrastructure: product store
	var products productStore
	switch cfg.Store.Type {
	case "postgres":
		pg, err := store.NewPostgresStore(cfg.Store.PostgresDSN, logger)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.CreateSchema(); err != nil {
			logger.Fatal("failed to create schema", zap.Error(err))
		}
		products = pg
	default:
		products = store.NewMemoryStore()
	}

	// Infrastructure: result cache
	var results domain.ResultCache
	switch cfg.Cache.Type {
	case "redis":
		rc, err := cache.NewRedisCache(cfg.Cache.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rc.Close()
		results = rc
	default:
		results = cache.NewMemoryCache()
	}

	// Retailer adapters
	if cfg.Retailers.RainforestAPIKey == "" {
		logger.Warn("rainforest API key not configured, Amazon live checks will report errors")
	}
	registry, err := retailer.NewRegistry(
		retailer.NewRainforestAdapter(retailer.RainforestConfig{
			APIKey:       cfg.Retailers.RainforestAPIKey,
			AmazonDomain: cfg.Retailers.AmazonDomain,
			Timeout:      cfg.Verify.AdapterTimeout,
		}, logger),
		retailer.NewBootsAdapter(retailer.BootsConfig{
			BaseURL: cfg.Retailers.BootsBaseURL,
			Timeout: cfg.Verify.AdapterTimeout,
		}, logger),
	)
	if err != nil {
		logger.Fatal("failed to build retailer registry", zap.Error(err))
	}

	// Usecase layer
	normalizer := usecase.NewNormalizer(usecase.NormalizerConfig{
		FuzzyThreshold: cfg.Matching.FuzzyThreshold,
	})
	filter := usecase.NewCandidateFilter(products, normalizer, usecase.FilterConfig{
		SupportedCountries: cfg.Matching.SupportedCountries,
		CandidateLimit:     cfg.Matching.CandidateLimit,
	})
	scorer := usecase.NewScorer(normalizer)
	verifier := usecase.NewLiveVerifier(results, products, registry, logger, usecase.VerifierConfig{
		TopN:           cfg.Verify.TopN,
		CacheTTL:       cfg.Cache.TTL,
		RecentWindow:   cfg.Verify.RecentWindow,
		AdapterTimeout: cfg.Verify.AdapterTimeout,
		DeadlineBuffer: cfg.Verify.DeadlineBuffer,
	})
	matcher := usecase.NewMatchService(normalizer, filter, scorer, verifier, logger, usecase.MatchServiceConfig{
		DefaultCurrency: cfg.Matching.DefaultCurrency,
	})

	// HTTP delivery
	handler := httpDelivery.NewHandler(matcher, logger)
	router := httpDelivery.SetupRouter(cfg, handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt, then drain in-flight requests
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("server exited")
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
