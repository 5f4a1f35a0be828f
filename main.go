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

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apirest "github.com/kasuganosora/novelsim/api/rest"
	"github.com/kasuganosora/novelsim/api/sse"
	"github.com/kasuganosora/novelsim/audit"
	"github.com/kasuganosora/novelsim/cache"
	"github.com/kasuganosora/novelsim/config"
	dbadapter "github.com/kasuganosora/novelsim/db"
	"github.com/kasuganosora/novelsim/game/engine"
	"github.com/kasuganosora/novelsim/game/save"
	"github.com/kasuganosora/novelsim/game/session"
	"github.com/kasuganosora/novelsim/game/world"
	mw "github.com/kasuganosora/novelsim/middleware"
	"github.com/kasuganosora/novelsim/model"
	"github.com/kasuganosora/novelsim/plugin/hook"
	"github.com/kasuganosora/novelsim/resource"
	"github.com/kasuganosora/novelsim/scheduler"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Security.SessionSecret == "" {
		cfg.Security.SessionSecret = uuid.NewString()
		logger.Warn("security.session_secret is not set; tokens will not survive a restart")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache ----
	c, err := cache.NewCache(cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	defer c.Close()
	logger.Info("Cache initialized")

	// ---- Story content ----
	repo := resource.NewAssetRepository(
		resource.NewDirLoader(cfg.Content.AssetDir), c, cfg.Cache.ContentTTL, logger)
	if list, err := repo.Catalogue(ctx); err != nil {
		logger.Warn("story catalogue unreadable", zap.Error(err))
	} else {
		logger.Info("story catalogue loaded",
			zap.String("dir", cfg.Content.AssetDir),
			zap.Int("stories", len(list)))
	}

	// ---- Hooks / Audit ----
	hooks := hook.NewCenter(logger)
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())
	auditSvc.Attach(hooks)
	events := sse.NewBroker(logger)
	events.Attach(hooks)

	// ---- Game systems ----
	eng := engine.New(engine.Config{Repo: repo, Hooks: hooks, Logger: logger})
	sim := world.NewSimulator(eng, world.Config{Logger: logger})
	sessions := session.NewManager(c, cfg.Game.SessionTTL, logger)
	saves := save.NewService(save.Config{
		DB:       db,
		Hooks:    hooks,
		Logger:   logger,
		MaxSlots: cfg.Game.MaxSaveSlots,
	})

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	scheduler.RegisterSessionTasks(sched, scheduler.SessionTasks{
		Engine:           eng,
		Sessions:         sessions,
		Saves:            saves,
		PlayTimeTick:     cfg.Game.PlayTimeTick,
		AutosaveInterval: cfg.Game.AutosaveInterval,
		Logger:           logger,
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(ctx, rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	gameH := apirest.NewGameHandler(apirest.GameDeps{
		Engine:       eng,
		Simulator:    sim,
		Sessions:     sessions,
		Saves:        saves,
		Security:     cfg.Security,
		DefaultStory: cfg.Content.DefaultStory,
		Logger:       logger,
	})
	api := r.Group("/api")
	apirest.Register(api, apirest.NewStoryHandler(repo, logger), gameH, mw.Auth(cfg.Security, c))
	api.GET("/sessions/:id/events", sse.NewHandler(events, c, cfg.Security, logger).ServeSSE)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(events.Close)
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	// Final autosave before the deferred stops run, on its own deadline.
	saveCtx, cancelSave := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSave()
	scheduler.SessionTasks{Engine: eng, Sessions: sessions, Saves: saves, Logger: logger}.AutosaveAll(saveCtx)
}
