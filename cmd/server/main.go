package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/broker"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront")

	if cfg.Observ.JaegerEndpoint != "" {
		tp, err := util.InitTracer("storefront", cfg.Server.Env, cfg.Observ.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	repo, closeRepo, err := openRepository(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer closeRepo()
	logger.Info("Store ready", zap.String("driver", cfg.Database.Driver))

	trustService := service.NewTrustService(repo)

	var locker service.Locker = service.NewLocalLocker()
	var redisClient *redisclient.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		locker = redisClient
		logger.Info("Redis connected")
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var eventPublisher *broker.EventPublisher
	var trustWorker *worker.TrustWorker
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		eventPublisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
		trustWorker = worker.NewTrustWorker(consumer, trustService)
		go func() {
			if err := trustWorker.Start(workerCtx); err != nil {
				logger.Error("Trust worker error", zap.Error(err))
			}
		}()
	} else {
		events := worker.NewTrustHandler(trustService)
		eventPublisher = broker.NewEventPublisher(broker.NewLoopback(events.HandleMessage))
		logger.Info("No Kafka brokers configured, scoring events in process")
	}

	orderService := service.NewOrderService(repo, repo, locker, eventPublisher).
		WithLockTTL(cfg.Redis.LockTTL)
	if redisClient != nil {
		orderService.WithIdempotencyCache(redisClient)
	}
	catalogService := service.NewCatalogService(repo, repo)
	authService := service.NewAuthService(repo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, catalogService, authService, cfg.Auth.LoginRatePerMinute)
	handler.CheckReadiness("store", repo)
	if redisClient != nil {
		handler.CheckReadiness("redis", redisClient)
	}
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key"},
			AllowCredentials: true,
		}).Handler(router),
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if trustWorker != nil {
		if err := trustWorker.Stop(); err != nil {
			logger.Error("Error stopping trust worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

// openRepository connects the configured store. The memory driver keeps all
// data in process and is meant for local runs.
func openRepository(cfg config.DatabaseConfig) (service.Repository, func() error, error) {
	if cfg.Driver == config.DriverMemory {
		mem := store.NewMemoryStore()
		return mem, mem.Close, nil
	}

	db, err := store.NewStore(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, db.Close, nil
}
