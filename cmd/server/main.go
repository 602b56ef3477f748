package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/listcart/backend/config"
	httpDelivery "github.com/listcart/backend/internal/delivery/http"
	"github.com/listcart/backend/internal/domain"
	"github.com/listcart/backend/internal/infrastructure/cache"
	"github.com/listcart/backend/internal/infrastructure/memory"
	"github.com/listcart/backend/internal/infrastructure/ocr"
	"github.com/listcart/backend/internal/infrastructure/postgres"
	"github.com/listcart/backend/internal/infrastructure/tesseract"
	"github.com/listcart/backend/internal/logger"
	"github.com/listcart/backend/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Server.Environment, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	os.Exit(finish(zlog, run(cfg, zlog)))
}

// finish logs err, flushes the logger and returns the process exit code
func finish(zlog *zap.Logger, err error) int {
	if err != nil {
		zlog.Error("server stopped", zap.Error(err))
	}
	_ = logger.Close(zlog)
	if err != nil {
		return 1
	}
	return 0
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	zlog.Info("starting listcart backend",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Database.Store),
		zap.String("ocr_provider", cfg.OCR.Provider),
	)

	catalog, carts, err := buildStores(cfg, zlog)
	if err != nil {
		return err
	}

	memoryCache := cache.NewMemoryCache(cfg.Cache.CleanupInterval)
	defer memoryCache.Close()

	provider, err := buildOCRProvider(cfg, zlog)
	if err != nil {
		zlog.Warn("image uploads disabled", zap.Error(err))
	}

	var recognizer usecase.TextRecognizer
	if provider != nil {
		recognizer = usecase.NewOCRPoller(provider, usecase.PollerConfig{
			Interval:    cfg.OCR.PollInterval,
			MaxAttempts: cfg.OCR.MaxAttempts,
		}, zlog.Named("ocr"))
	}

	matcher := usecase.NewProductMatcher(catalog, memoryCache, usecase.MatcherConfig{
		TieBreak: domain.TieBreak(cfg.Matching.TieBreak),
		CacheTTL: cfg.Cache.TTL,
	}, zlog.Named("matcher"))
	reconciler := usecase.NewCartReconciler(carts, usecase.ReconcilerConfig{
		MaxSaveRetries: cfg.Cart.MaxSaveRetries,
	}, zlog.Named("cart"))
	service := usecase.NewIngestionService(recognizer, matcher, reconciler, zlog.Named("ingest"))

	handler := httpDelivery.NewHandler(service, cfg.Server.MaxUploadBytes, zlog.Named("http"))
	router := httpDelivery.SetupRouter(cfg, handler, zlog.Named("http"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildStores picks the catalog and cart store for the configured backend
func buildStores(cfg *config.Config, zlog *zap.Logger) (domain.ProductCatalog, domain.CartStore, error) {
	var seed *memory.Catalog
	if cfg.Database.SeedFile != "" {
		var err error
		seed, err = memory.LoadCatalogFile(cfg.Database.SeedFile)
		if err != nil {
			return nil, nil, err
		}
	}

	switch cfg.Database.Store {
	case "postgres":
		db, err := postgres.Open(cfg.Database.DSN, zlog.Named("db"))
		if err != nil {
			return nil, nil, err
		}
		catalog := postgres.NewCatalog(db)
		if seed != nil {
			n, err := catalog.SeedIfEmpty(context.Background(), seed.Products())
			if err != nil {
				return nil, nil, err
			}
			zlog.Info("catalog seeded", zap.Int("products", n))
		}
		return catalog, postgres.NewCartStore(db), nil

	default:
		catalog := seed
		if catalog == nil {
			catalog = memory.NewCatalog()
			zlog.Warn("memory catalog is empty; set LISTCART_DATABASE_SEED_FILE")
		}
		zlog.Info("memory catalog loaded", zap.Int("products", catalog.Len()))
		return catalog, memory.NewCartStore(), nil
	}
}

// buildOCRProvider returns nil and an error when the provider cannot run,
// which leaves the other upload paths working
func buildOCRProvider(cfg *config.Config, zlog *zap.Logger) (domain.OCRProvider, error) {
	switch cfg.OCR.Provider {
	case "http":
		return ocr.NewClient(ocr.ClientConfig{
			BaseURL:           cfg.OCR.BaseURL,
			APIKey:            cfg.OCR.APIKey,
			RequestsPerSecond: cfg.OCR.RateLimit,
		}, zlog.Named("ocr")), nil

	default:
		engine, err := tesseract.NewEngine(cfg.OCR.Language)
		if err != nil {
			return nil, err
		}
		return tesseract.NewProvider(engine, tesseract.Config{Workers: cfg.OCR.Workers}, zlog.Named("tesseract")), nil
	}
}
