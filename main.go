package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"priceaction-bot/config"
	"priceaction-bot/internal/ai/llm"
	"priceaction-bot/internal/api"
	"priceaction-bot/internal/auth"
	"priceaction-bot/internal/binance"
	"priceaction-bot/internal/consensus"
	"priceaction-bot/internal/database"
	"priceaction-bot/internal/events"
	"priceaction-bot/internal/logging"
	"priceaction-bot/internal/pipeline"
	"priceaction-bot/internal/risk"
	"priceaction-bot/internal/state"
	"priceaction-bot/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LoggingConfig.Level, cfg.LoggingConfig.Console)
	logger.Info().Msg("priceaction bot starting")

	eventBus := events.NewEventBus()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: PostgreSQL when configured, in-memory otherwise.
	var store state.Store
	if cfg.DatabaseConfig.Host != "" {
		db, err := database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logging.Component(logger, "database"))
		if err != nil {
			logger.Fatal().Err(err).Msg("database connection failed")
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}

		var cache *database.StateCache
		if cfg.RedisConfig.Enabled {
			cache = database.NewStateCache(
				cfg.RedisConfig.Address,
				cfg.RedisConfig.Password,
				cfg.RedisConfig.DB,
				logging.Component(logger, "cache"))
			defer cache.Close()
		}

		repo := database.NewRepository(db, cache, logging.Component(logger, "repository"))
		store = repo

		// Janitor: ANALYZED plans older than a day move to EXPIRED.
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					n, err := repo.ExpireStalePlans(ctx, 24*time.Hour)
					if err != nil {
						logger.Error().Err(err).Msg("stale plan expiry failed")
					} else if n > 0 {
						logger.Info().Int64("expired", n).Msg("stale trade plans expired")
					}
				}
			}
		}()
	} else {
		logger.Warn().Msg("no DATABASE_HOST configured, state is in-memory only")
		store = state.NewMemoryStore()
	}

	// LLM API key: environment first, Vault as the managed alternative.
	llmAPIKey := cfg.LLMConfig.APIKey
	if cfg.VaultConfig.Enabled {
		vaultClient, err := vault.NewClient(vault.Config{
			Enabled:   true,
			Address:   cfg.VaultConfig.Address,
			Token:     cfg.VaultConfig.Token,
			MountPath: cfg.VaultConfig.MountPath,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("vault client failed")
		}
		if key, err := vaultClient.GetLLMAPIKey(ctx, cfg.LLMConfig.Provider); err == nil {
			llmAPIKey = key
			logger.Info().Msg("LLM API key loaded from Vault")
		} else {
			logger.Warn().Err(err).Msg("Vault lookup failed, using configured key")
		}
	}

	llmClient := llm.NewClient(&llm.ClientConfig{
		Provider:    llm.Provider(cfg.LLMConfig.Provider),
		APIKey:      llmAPIKey,
		Model:       cfg.LLMConfig.Model,
		BaseURL:     cfg.LLMConfig.BaseURL,
		MaxTokens:   cfg.LLMConfig.MaxTokens,
		Temperature: cfg.LLMConfig.Temperature,
		Timeout:     cfg.LLMConfig.TimeoutDuration(),
		MaxRetries:  cfg.LLMConfig.MaxRetries,
	}, logging.Component(logger, "llm"))
	if !llmClient.IsConfigured() {
		logger.Warn().Msg("no LLM API key configured, reconciliation will fail until one is set")
	}

	market := binance.NewClient(cfg.BinanceConfig.BaseURL)

	consensusEngine := consensus.NewEngine(consensus.Config{
		Weights: cfg.ConsensusConfig.Weights,
		Epsilon: cfg.ConsensusConfig.Epsilon,
	})
	riskEngine := risk.NewEngine(riskConfig(cfg.RiskConfig))

	analyst := pipeline.NewLLMAnalyst(
		llmClient, market,
		cfg.PipelineConfig.Timeframes,
		cfg.PipelineConfig.KlineLimit,
		logging.Component(logger, "analyst"))

	reconciler := pipeline.NewReconciler(
		store, consensusEngine, eventBus, analyst,
		cfg.PipelineConfig.Timeframes,
		logging.Component(logger, "pipeline"))

	scheduler := pipeline.NewScheduler(
		reconciler, eventBus,
		cfg.PipelineConfig.Symbols,
		cfg.PipelineConfig.IntervalDuration(),
		logging.Component(logger, "scheduler"))
	go scheduler.Run(ctx)

	var authService *auth.Service
	if cfg.AuthConfig.AuthEnabled() {
		authService, err = auth.NewService(cfg.AuthConfig.Username, cfg.AuthConfig.Password, cfg.AuthConfig.JWTSecret)
		if err != nil {
			logger.Fatal().Err(err).Msg("auth setup failed")
		}
		logger.Info().Msg("operator auth enabled")
	}

	server := api.NewServer(
		api.ServerConfig{
			Host:           cfg.ServerConfig.Host,
			Port:           cfg.ServerConfig.Port,
			ProductionMode: cfg.ServerConfig.ProductionMode,
		},
		store, reconciler, riskEngine, market, eventBus, authService,
		logging.Component(logger, "api"))

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("bye")
}

// riskConfig maps config values onto the engine policy, keeping the
// documented defaults for unset fields.
func riskConfig(rc config.RiskConfig) risk.Config {
	out := risk.DefaultConfig()
	if rc.KellyMultiplier > 0 {
		out.KellyMultiplier = rc.KellyMultiplier
	}
	if rc.AccountBalance > 0 {
		out.AccountBalance = rc.AccountBalance
	}
	if rc.RiskPerTrade > 0 {
		out.RiskPerTrade = rc.RiskPerTrade
	}
	if rc.LowMaxStopPct > 0 {
		out.LowMaxStopPct = rc.LowMaxStopPct
	}
	if rc.MediumMaxStopPct > 0 {
		out.MediumMaxStopPct = rc.MediumMaxStopPct
	}
	if rc.HighMaxStopPct > 0 {
		out.HighMaxStopPct = rc.HighMaxStopPct
	}
	if rc.MinKellyForLow > 0 {
		out.MinKellyForLow = rc.MinKellyForLow
	}
	return out
}
