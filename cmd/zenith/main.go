package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"zenith/internal/advisor"
	"zenith/internal/analytics"
	"zenith/internal/backend"
	"zenith/internal/cache"
	"zenith/internal/cli"
	apphttp "zenith/internal/http"
	"zenith/internal/ledger"
	"zenith/internal/llm"
	"zenith/internal/log"
	"zenith/internal/services"
	"zenith/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	store := ledger.New(result.Persister, logger)
	store.Initialize(context.Background())

	engine := analytics.NewEngine(store, logger)
	snapshots := cache.NewSnapshotCache(engine, cfg.SnapshotTTL, logger)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(snapshots)
	cacheManager.StartCleanup(time.Minute)

	// a nil *amqp.Client must not become a non-nil interface
	var publisher services.ChangePublisher
	if result.Publisher != nil {
		publisher = result.Publisher
	}
	ledgerService := services.NewLedgerService(store, snapshots, publisher, logger)

	provider, err := llm.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize language model provider", log.FieldError, err, log.FieldProvider, cfg.LLMProvider)
		os.Exit(1)
	}

	resolver := advisor.NewResolver(snapshots, cfg.CurrencySymbol, logger)
	adv := advisor.New(resolver, store, provider, provider, advisor.Options{
		CurrencySymbol: cfg.CurrencySymbol,
		YieldEvery:     cfg.StreamYieldEvery,
		MaxTokens:      cfg.MaxTokens,
		TipMaxTokens:   cfg.TipMaxTokens,
	}, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:    ledgerService,
		Snapshots: snapshots,
		Resolver:  resolver,
		Advisor:   adv,
	}, logger)
	srv.ReadTimeout = 10 * time.Second
	// streamed advice can legitimately take as long as the model does
	srv.WriteTimeout = cfg.LLMTimeout + 10*time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB
	srv.OnShutdown(cacheManager.Stop)

	// a nil *amqp.Client must not become a non-nil interface either
	var changes worker.ChangeSource
	if result.Publisher != nil {
		changes = result.Publisher
	}
	changeWorker := worker.NewChangeWorker(changes, ledgerService, worker.Config{ReloadInterval: cfg.ReloadInterval}, logger)
	if changeWorker.Enabled() {
		if err := changeWorker.Start(context.Background()); err != nil {
			logger.Error("Failed to start change worker", log.FieldError, err)
			os.Exit(1)
		}
	}

	ctx := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := changeWorker.Stop(shutdownCtx); err != nil {
			logger.Error("Change worker shutdown error", log.FieldError, err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting zenith server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		log.FieldProvider, provider.Name(),
		"notifications", result.Publisher != nil,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
