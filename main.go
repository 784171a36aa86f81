package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/TGSE-nepuro/cloudsign-APImok/handlers"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/cloudsign"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/config"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/database"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document/repository"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document/service"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/events"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/signing"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/storage"
	"github.com/TGSE-nepuro/cloudsign-APImok/pkg/logger"
	"github.com/TGSE-nepuro/cloudsign-APImok/pkg/metrics"
	"github.com/TGSE-nepuro/cloudsign-APImok/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: cloudsign=%s mongo=%v redis=%v", cfg.CloudSign.BaseURL, cfg.MongoDB.URI != "", cfg.Redis.Host != "")

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	// (Keep this intentionally simple — production should use a stricter policy.)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	ctx := context.Background()

	// Connect to Redis early so the rate-limiter and consent store can use it
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// MongoDB with retry/backoff to tolerate startup races
	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		mongoClient, err = database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			logger.Warnf("could not connect to MongoDB: %v", err)
			mongoClient = nil
		} else {
			defer func() { _ = mongoClient.Disconnect(ctx) }()
		}
	}

	// case records: Mongo when available, in-memory otherwise
	var repo repository.Repository
	var sink handlers.EventSink
	if mongoClient != nil {
		db := mongoClient.Database(cfg.MongoDB.Database)
		repo = repository.NewMongoRepo(db.Collection("cases"))
		sink = events.NewStore(db.Collection("webhook_events"))
		logger.Infof("using MongoDB for case records")
	} else {
		repo = repository.NewMemoryRepo()
		sink = events.NewMemoryStore()
		logger.Warn("MongoDB unavailable, using in-memory case records (volatile)")
	}

	// consent records: Redis TTL store when available
	var consents signing.ConsentStore
	if redisClient != nil {
		consents = signing.NewRedisConsentStore(redisClient, "consent:")
	} else {
		consents = signing.NewMemoryConsentStore()
	}

	// contract file storage (optional; uploads are still attached remotely without it)
	var store *storage.MinIOStorage
	if mcfg := storage.LoadMinIOConfig(); mcfg.Endpoint != "" {
		store, err = storage.NewMinIOStorage(mcfg)
		if err != nil {
			logger.Warnf("minio unavailable: %v", err)
			store = nil
		}
	}

	api := cloudsign.NewClient(&cfg.CloudSign)
	svc := service.New(api, repo)
	var fileSource signing.FileSource
	if store != nil {
		fileSource = store
	}
	orch := signing.NewOrchestrator(svc, consents, fileSource)

	caseHandler := handlers.NewCaseHandler(svc, orch, store)
	caseHandler.RegisterCaseRoutes(r)

	webhookHandler := handlers.NewWebhookHandler(svc, orch, sink)
	if cfg.Webhook.Secret != "" {
		webhookHandler.RegisterWebhookRoutes(r, middleware.WebhookAuthMiddleware(cfg.Webhook.Secret))
	} else {
		logger.Warn("CLOUDSIGN_WEBHOOK_SECRET not set, webhook endpoint disabled")
	}

	handlers.RegisterSwagger(r)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness — return 200 only when critical dependencies are available
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		deps["mongodb"] = mongoClient == nil || mongoClient.Ping(c.Request.Context(), nil) == nil
		if cfg.MongoDB.URI != "" && !deps["mongodb"] {
			ready = false
		}
		if cfg.Redis.Host != "" {
			deps["redis"] = redisClient != nil && redisClient.Ping(c.Request.Context()).Err() == nil
			if !deps["redis"] {
				ready = false
			}
		} else {
			deps["redis"] = true
		}
		deps["storage"] = store != nil

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": time.Since(startTime).String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting cloudsign api service on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
