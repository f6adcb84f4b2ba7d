package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callboard/internal/calls"
	"callboard/internal/config"
	"callboard/internal/dialer"
	"callboard/internal/httpapi"
	"callboard/internal/ratelimit"
	"callboard/internal/reporting"
	"callboard/internal/scoring"
	"callboard/internal/vapi"
	"callboard/internal/webhook"
	"callboard/pkg/logger"
	"callboard/pkg/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	vapiClient, err := vapi.NewClient(vapi.Config{
		BaseURL:       cfg.Vapi.BaseURL,
		APIKey:        cfg.Vapi.APIKey,
		AssistantID:   cfg.Vapi.AssistantID,
		PhoneNumberID: cfg.Vapi.PhoneNumberID,
	})
	if err != nil {
		log.Error("vapi client init failed", "err", err)
		os.Exit(1)
	}

	var scorer scoring.Scorer = scoring.Disabled{}
	if cfg.ScoringEnabled() {
		scorer, err = scoring.NewOpenAIScorer(scoring.OpenAIConfig{
			APIKey: cfg.OpenAI.APIKey,
			Model:  cfg.OpenAI.Model,
		})
		if err != nil {
			log.Error("scorer init failed", "err", err)
			os.Exit(1)
		}
	} else {
		log.Warn("transcript scoring disabled: OPENAI_API_KEY not set")
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.Dial.RatePerSec)
	if cfg.Redis.Host != "" {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()

		limiter, err = ratelimit.NewRedisLimiter(rdb, cfg.Dial.RatePerSec)
		if err != nil {
			log.Error("rate limiter init failed", "err", err)
			os.Exit(1)
		}
		log.Info("using shared redis dial limiter", "addr", cfg.RedisAddr())
	}

	// Call state is process-lifetime only: restarts start empty and
	// events for unknown calls are discarded by the reconciler.
	store := calls.NewMemoryStore()

	h := httpapi.Handlers{
		Dialer:     dialer.NewService(vapiClient, store, limiter),
		Reconciler: webhook.NewReconciler(store, scorer, log),
		Store:      store,
		Reports:    reporting.NewService(store),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, h)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
