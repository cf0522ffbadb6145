package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"pqmap-analyzer/internal/adms"
	"pqmap-analyzer/internal/cache"
	"pqmap-analyzer/internal/config"
	"pqmap-analyzer/internal/database"
	"pqmap-analyzer/internal/detector"
	"pqmap-analyzer/internal/grouping"
	"pqmap-analyzer/internal/httpapi"
	"pqmap-analyzer/internal/logger"
	"pqmap-analyzer/internal/repository"
	"pqmap-analyzer/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "pqmap-analyzer")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	eventRepo := repository.NewEventRepository(db, log)
	ruleRepo := repository.NewRuleRepository(db, log)
	cacheManager := cache.NewManager(cfg, redisClient, log)

	var admsClient *adms.Client
	if cfg.ADMS.BaseURL != "" {
		admsClient = adms.NewClient(&cfg.ADMS, log)
	} else {
		log.Warn("ADMS base URL not configured, detection runs without system context")
	}

	groupingEngine := grouping.NewEngine(eventRepo, time.Duration(cfg.Grouping.WindowMinutes)*time.Minute, log)
	det := detector.NewDetector(log)

	svc := service.NewAnalyzerService(cfg, log, eventRepo, ruleRepo, cacheManager, admsClient, groupingEngine, det)

	router := httpapi.NewRouter(log)
	router.RegisterGroupingRoutes(httpapi.NewGroupingHandler(svc, log))
	detection := httpapi.NewDetectionHandler(svc, log)
	router.RegisterDetectionRoutes(detection)
	router.RegisterRuleRoutes(httpapi.NewRuleHandler(svc, log), detection)
	router.RegisterHealthRoutes()

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Shutdown signal received")
	case err := <-errCh:
		log.Error("HTTP server exited", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	_ = redisClient.Close()
	_ = database.Close(db)
}
