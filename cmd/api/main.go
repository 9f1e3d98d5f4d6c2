package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/news-similarity/engine/internal/annotate"
	"github.com/news-similarity/engine/internal/api/handlers"
	redisCache "github.com/news-similarity/engine/internal/cache/redis"
	"github.com/news-similarity/engine/internal/metrics"
	"github.com/news-similarity/engine/internal/middleware/ratelimit"
	"github.com/news-similarity/engine/internal/nes"
	"github.com/news-similarity/engine/internal/similarity"
	"github.com/news-similarity/engine/internal/storage/sqlite"
	"github.com/news-similarity/engine/internal/topics"
	"github.com/news-similarity/engine/internal/wiki"
	"github.com/news-similarity/engine/pkg/config"
	appLogger "github.com/news-similarity/engine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting news similarity engine")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var shared wiki.SharedCache
	if cfg.Redis.Enabled {
		redisClient, err := redisCache.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLHours)*time.Hour,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		shared = redisClient
	}

	topicModel, err := topics.Load(cfg.Topics.VocabPath, cfg.Topics.WeightsPath)
	if err != nil {
		appLogger.Fatal("Failed to load topic model", zap.Error(err))
	}

	freqs, err := annotate.LoadFrequencies(cfg.Engine.FreqPath)
	if err != nil {
		appLogger.Warn("Word frequency table unavailable, salience falls back to the OOV floor",
			zap.String("path", cfg.Engine.FreqPath),
			zap.Error(err),
		)
		freqs = nil
	}
	annotator := annotate.NewProseAnnotator(freqs)

	provider := wiki.NewMediaWiki(
		cfg.Wiki.BaseURL,
		cfg.Wiki.UserAgent,
		time.Duration(cfg.Wiki.TimeoutSec)*time.Second,
		time.Duration(cfg.Wiki.FetchDelayMS)*time.Millisecond,
	)

	wikiClient, err := wiki.NewClient(provider, sqliteClient, shared, annotator, wiki.Options{
		MaxAttempts:    cfg.Wiki.MaxAttempts,
		SearchLimit:    cfg.Wiki.SearchLimit,
		ArticleLRUSize: cfg.Wiki.ArticleLRUSize,
		SimLRUSize:     cfg.Wiki.SimLRUSize,
		EntityLRUSize:  cfg.Wiki.EntityLRUSize,
	})
	if err != nil {
		appLogger.Fatal("Failed to create encyclopedia client", zap.Error(err))
	}

	neSimilarity, err := nes.New(wikiClient, cfg.Engine.NEMemoSize)
	if err != nil {
		appLogger.Fatal("Failed to create NE similarity", zap.Error(err))
	}

	engine := similarity.NewEngine(annotator, topicModel, neSimilarity, cfg.Engine.MaxEntities, similarity.Weights{
		What:  cfg.Engine.WhatWeight,
		Who:   cfg.Engine.WhoWeight,
		Where: cfg.Engine.WhereWeight,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.RateLimit,
		Logger:               appLogger.L(),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(limiter.Middleware())

	compareHandler := handlers.NewCompareHandler(engine, sqliteClient)
	entityHandler := handlers.NewEntityHandler(neSimilarity)

	api := app.Group("/api/v1")

	api.Post("/compare", compareHandler.HandleCompare)
	api.Get("/compare/history", compareHandler.GetHistory)
	api.Get("/entities/similarity", entityHandler.HandleSimilarity)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
