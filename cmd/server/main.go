package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/valentingnt/investr-sub000/internal/config"
	"github.com/valentingnt/investr-sub000/internal/db"
	"github.com/valentingnt/investr-sub000/internal/handlers"
	"github.com/valentingnt/investr-sub000/internal/logger"
	"github.com/valentingnt/investr-sub000/internal/models"
	"github.com/valentingnt/investr-sub000/internal/quote"
	"github.com/valentingnt/investr-sub000/internal/quote/cache"
	"github.com/valentingnt/investr-sub000/internal/quote/providers"
	"github.com/valentingnt/investr-sub000/internal/quote/ratelimit"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	zlog, err := logger.New()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer zlog.Sync()

	cfg := config.Load()

	database, err := db.Connect(cfg.DB)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()
	if err := database.Health(); err != nil {
		zlog.Fatal("database health check failed", zap.Error(err))
	}
	zlog.Info("database connection established", zap.String("driver", cfg.DB.Driver))

	// Rate budgets per provider.
	budgets := make(map[string]ratelimit.Budget, len(cfg.Providers))
	for key, pc := range cfg.Providers {
		if pc.PerDay > 0 {
			budgets[key] = ratelimit.DailyBudget(pc.PerMinute, pc.PerDay)
		} else {
			budgets[key] = ratelimit.MinuteBudget(pc.PerMinute)
		}
	}
	limiter := ratelimit.New(budgets)

	// Credentials: env/bundled defaults, overridable at runtime through the
	// settings endpoint.
	defaults := make(map[string]string, len(cfg.Providers))
	for key, pc := range cfg.Providers {
		defaults[key] = pc.APIKey
	}
	credentials := quote.NewCredentialStore(defaults)

	// Adapters in priority order per asset class, primary first.
	coinGecko := providers.NewCoinGecko(credentials, cfg.QuoteCurrency)
	coinMarketCap := providers.NewCoinMarketCap(credentials, cfg.QuoteCurrency)
	finnhub := providers.NewFinnhub(credentials, cfg.QuoteCurrency)
	twelveData := providers.NewTwelveData(credentials, limiter, cfg.QuoteCurrency)
	alphaVantage := providers.NewAlphaVantage(credentials, cfg.QuoteCurrency)

	registry := quote.NewRegistry(limiter, zlog, map[models.AssetClass][]providers.Adapter{
		models.AssetClassCrypto: {coinGecko, coinMarketCap, twelveData},
		models.AssetClassEquity: {finnhub, twelveData, alphaVantage},
	})

	store, err := cache.NewStore(database, cfg.PersistedTTL)
	if err != nil {
		zlog.Fatal("failed to initialize persisted cache", zap.Error(err))
	}
	quoteCache := cache.New(cache.NewMemory(cfg.MemoryTTL), store, zlog)
	quoteCache.Prewarm(context.Background(), cfg.PrewarmCount)

	service := quote.NewService(quoteCache, registry, limiter, cfg.QuoteCurrency, zlog)

	quoteHandler := handlers.NewQuoteHandler(service, credentials, zlog)

	r := mux.NewRouter()
	r.Use(handlers.RequestLogging(zlog))
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"service": "investr-marketdata",
		})
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/quote", quoteHandler.HandleQuote).Methods(http.MethodGet)
	r.HandleFunc("/api/providers/usage", quoteHandler.HandleProviderUsage).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/cache/clear", quoteHandler.HandleClearCache).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/credentials/{provider}", quoteHandler.HandleSetCredential).Methods(http.MethodPut)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		zlog.Info("server starting", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	stop, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-stop.Done()

	zlog.Info("shutting down")
	service.CancelAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown failed", zap.Error(err))
	}
}
