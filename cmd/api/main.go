package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swiftx/internal/accounts"
	"swiftx/internal/admin"
	"swiftx/internal/auth"
	"swiftx/internal/config"
	"swiftx/internal/db"
	"swiftx/internal/health"
	"swiftx/internal/httpserver"
	"swiftx/internal/ledger"
	"swiftx/internal/logger"
	"swiftx/internal/marketdata"
	"swiftx/internal/sessions"
	"swiftx/internal/support"

	"go.uber.org/zap"
)

const (
	sessionSweep    = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	startedAt := time.Now()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.StaticDir != "" {
		if _, err := os.Stat(cfg.StaticDir); err != nil {
			log.Fatal(err)
		}
	}
	lg, err := logger.New(cfg.Mode, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := db.Open(ctx, cfg.DBDriver, cfg.DBDSN, lg)
	if err != nil {
		lg.Fatal("open storage", zap.Error(err))
	}
	defer st.Close()

	sm := sessions.NewManager(st, sessions.Options{
		Secret:     []byte(cfg.SessionSecret),
		CookieName: cfg.SessionCookieName,
		TTL:        cfg.SessionTTL,
		Secure:     cfg.CookieSecure,
		SameSite:   cfg.CookieSameSite,
	}, lg)
	go sm.RunJanitor(ctx, sessionSweep)

	authSvc, err := auth.NewService(st, auth.NewLogSender(lg), auth.Options{
		BcryptCost:      cfg.BcryptCost,
		VerificationTTL: cfg.VerificationTTL,
	}, lg)
	if err != nil {
		lg.Fatal("init auth", zap.Error(err))
	}
	ledgerSvc := ledger.NewService(st, ledger.Options{ReserveWithdrawals: cfg.WithdrawReserve}, lg)

	policy := marketdata.Policy{Timeout: cfg.MarketTimeout, Attempts: cfg.MarketRetries, Backoff: cfg.MarketBackoff, Budget: cfg.MarketBudget}
	upstream := &http.Client{}
	sources := []marketdata.Source{marketdata.NewBinance(cfg.BinanceBaseURL, upstream, policy, lg)}
	if cfg.WallexAPIKey != "" {
		sources = append(sources, marketdata.NewWallex(cfg.WallexAPIKey, policy, lg))
	}
	registry := marketdata.NewRegistry(sources...)
	rates := marketdata.NewRatesSource(cfg.ForexBaseURL, upstream, policy, lg)

	limiter := httpserver.NewRateLimiter(10, 30)
	go limiter.Run(ctx)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Sessions:        sm,
		AuthHandler:     auth.NewHandler(authSvc, sm, lg),
		AccountsHandler: accounts.NewHandler(accounts.NewService(st, sm, lg), lg),
		LedgerHandler:   ledger.NewHandler(ledgerSvc, lg),
		AdminHandler:    admin.NewHandler(admin.NewService(st, lg), ledgerSvc, sm, lg),
		SupportHandler:  support.NewHandler(support.NewService(st, lg), lg),
		MarketHandler:   marketdata.NewHandler(registry, rates, marketdata.NewQuoteWS(registry, cfg.FrontendOrigin, lg), lg),
		HealthHandler:   health.NewHandler(st, cfg.DBDriver, startedAt, lg),
		RateLimiter:     limiter,
		FrontendOrigin:  cfg.FrontendOrigin,
		StaticDir:       cfg.StaticDir,
		Log:             lg,
	})
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Warn("graceful shutdown failed", zap.Error(err))
		}
	}()

	lg.Info("server listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("mode", cfg.Mode),
		zap.String("db_driver", cfg.DBDriver),
		zap.Strings("market_sources", registry.Names()),
		zap.Bool("withdraw_reserve", cfg.WithdrawReserve))
	if cfg.StaticDir != "" {
		lg.Info("serving static files", zap.String("dir", cfg.StaticDir))
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal("http server", zap.Error(err))
	}
	lg.Info("server stopped")
}
