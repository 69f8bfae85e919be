package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"

	"equity_valuation/pkg/api"
	"equity_valuation/pkg/api/auth"
	apiconfig "equity_valuation/pkg/api/config"
	"equity_valuation/pkg/api/portfolio"
	"equity_valuation/pkg/api/prices"
	"equity_valuation/pkg/api/report"
	"equity_valuation/pkg/api/valuation"
	coreauth "equity_valuation/pkg/core/auth"
	"equity_valuation/pkg/core/calc"
	"equity_valuation/pkg/core/config"
	"equity_valuation/pkg/core/marketdata"
	"equity_valuation/pkg/core/pipeline"
	"equity_valuation/pkg/core/store"
)

const (
	reportDir          = "reports"
	tokenPurgeInterval = time.Hour
	shutdownTimeout    = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("[FATAL] configuration")
	}
	cfg.SetupLogging()
	log.Info().Str("env", cfg.AppEnv).Str("model_defaults", cfg.ModelDefaultsFile).Msg("[BOOT] equity valuation API starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database is optional: without it auth and portfolios answer 503 and
	// reports are kept as files.
	var pinger apiconfig.Pinger
	if cfg.DatabaseURL != "" {
		if err := store.InitDB(ctx, cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("[FATAL] database")
		}
		defer store.Close()
		if err := store.Migrate(cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("[FATAL] migrations")
		}
		pinger = store.GetPool()
	} else {
		log.Warn().Msg("[BOOT] DATABASE_URL not set, running without persistence")
	}
	pool := store.GetPool()

	users := store.NewUserRepo(pool)
	refreshTokens := store.NewRefreshTokenRepo(pool)
	reports := store.NewReportRepo(pool, reportDir)

	issuer := coreauth.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	human := coreauth.NewHumanVerifier(cfg.TurnstileSecret, cfg.AppEnv)

	opts := []marketdata.ClientOption{marketdata.WithRateLimit(cfg.MarketDataRPS)}
	if cfg.MarketDataURL != "" {
		opts = append(opts, marketdata.WithBaseURL(cfg.MarketDataURL))
	}
	client := marketdata.NewClient(cfg.MarketDataAPIKey, opts...)
	quotes := marketdata.NewQuoteService(client)
	var fxStore marketdata.FXStore
	if pool != nil {
		fxStore = store.NewFXRepo(pool)
	}
	fx := marketdata.NewFXService(client, fxStore)

	orch := pipeline.NewOrchestrator(calc.NewEngine(cfg.Model), pipeline.ReportRecorder{Repo: reports})

	handlers := api.Handlers{
		Auth:      auth.NewHandler(users, refreshTokens, issuer, human, !cfg.IsDev()),
		Config:    apiconfig.NewHandler(cfg.Model, cfg.ModelDefaultsFile, client.Enabled(), pinger),
		Valuation: valuation.NewHandler(orch, nil, cfg.MaxUploadBytes),
		Report:    report.NewHandler(reports),
		Portfolio: portfolio.NewHandler(store.NewPortfolioRepo(pool), store.NewTransactionRepo(pool), quotes, fx),
	}
	if client.Enabled() {
		handlers.Valuation.Profiles = quotes
		handlers.Prices = prices.NewHandler(client, quotes)
	} else {
		log.Warn().Msg("[BOOT] MARKET_DATA_API_KEY not set, price and profile endpoints disabled")
	}

	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", reportDir).Msg("[BOOT] report directory unavailable")
	}
	if pool != nil {
		go purgeRefreshTokens(ctx, refreshTokens)
	}

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewRouter(handlers, issuer, api.Options{
			CORSOrigins:    cfg.CORSOrigins,
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("[BOOT] API server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("[FATAL] server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("[BOOT] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("[BOOT] graceful shutdown failed")
	}
}

// purgeRefreshTokens drops expired and revoked refresh tokens every hour.
func purgeRefreshTokens(ctx context.Context, repo *store.RefreshTokenRepo) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PurgeExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("[AUTH] refresh token purge failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("purged", n).Msg("[AUTH] expired refresh tokens purged")
			}
		}
	}
}
