package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TechPulse/backend/go/internal/aggregator_service/api"
	"TechPulse/backend/go/internal/aggregator_service/archive"
	"TechPulse/backend/go/internal/aggregator_service/cascade"
	"TechPulse/backend/go/internal/aggregator_service/consumer"
	"TechPulse/backend/go/internal/aggregator_service/history"
	"TechPulse/backend/go/internal/aggregator_service/notifier"
	"TechPulse/backend/go/internal/aggregator_service/orchestrator"
	"TechPulse/backend/go/internal/aggregator_service/publisher"
	"TechPulse/backend/go/internal/aggregator_service/service"
	"TechPulse/backend/go/internal/aggregator_service/store"
	"TechPulse/backend/go/internal/config"
	"TechPulse/backend/go/internal/connection"
	"TechPulse/backend/go/internal/database/kafka"
	"TechPulse/backend/go/internal/database/minio"
	"TechPulse/backend/go/internal/database/mongo"
	"TechPulse/backend/go/internal/database/mysql"
	"TechPulse/backend/go/internal/database/redis"
	"TechPulse/backend/go/internal/models"
	"TechPulse/backend/go/internal/provider"
	pkghttp "TechPulse/backend/go/pkg/http"
	"TechPulse/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const defaultConfigPath = "backend/go/internal/config/config.yaml"

func main() {
	configPath := os.Getenv("TECHPULSE_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logLevel, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		log.Fatalf("Invalid logger level: %v", err)
	}
	logger.Init(logLevel)
	serviceLogger := logger.New("AggregatorService", "", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Credentials are re-read from the config file after it changes.
	creds := config.FileCredentials(configPath)
	if err := config.WatchCredentials(ctx, configPath, creds, func(name string) {
		serviceLogger.WithPayload(map[string]interface{}{"file": name}).Info("Configuration changed, provider credentials invalidated")
	}); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Credential watcher not started")
	}

	var healthChecks []api.Option
	var closers []io.Closer

	contentStore, err := openContentStore(ctx, cfg, &healthChecks, &closers)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeStore}).Fatal("Failed to open content store")
	}

	registry, err := openRegistry(cfg, &healthChecks)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to open connection registry")
	}
	connections := connection.NewService(registry, connection.NewHub(), cfg.ConnectionTTL(),
		connection.WithLogger(serviceLogger.WithComponent("connection")))

	// Aggregation pipeline
	providers := provider.FromConfig(cfg, creds, serviceLogger.WithComponent("provider"))
	for _, p := range providers {
		if c, ok := p.(io.Closer); ok {
			closers = append(closers, c)
		}
	}
	serviceLogger.WithPayload(map[string]interface{}{"providers": len(providers)}).Info("Provider cascade configured")

	svcOpts := []service.Option{service.WithLogger(serviceLogger.WithComponent("pipeline"))}
	if cfg.Databases.MinIO.Enabled {
		client, err := minio.GetClient(ctx, &cfg.Databases.MinIO)
		if err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeStore}).Warn("Snapshot archive disabled")
		} else {
			svcOpts = append(svcOpts, service.WithArchiver(archive.NewMinioArchiver(client, cfg.Databases.MinIO.Bucket)))
			healthChecks = append(healthChecks, api.WithHealthCheck("minio", minio.HealthCheck))
		}
	}
	aggregator := service.NewAggregatorService(cascade.New(providers, serviceLogger.WithComponent("cascade")), contentStore, svcOpts...)

	var recorder history.Recorder = history.NewMemoryRecorder(100)
	if cfg.Databases.MySQL.Enabled {
		db, err := mysql.GetDB(&cfg.Databases.MySQL)
		if err == nil {
			var gormRecorder *history.GormRecorder
			if gormRecorder, err = history.NewGormRecorder(db); err == nil {
				recorder = gormRecorder
				healthChecks = append(healthChecks, api.WithHealthCheck("mysql", mysql.HealthCheck))
			}
		}
		if err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeStore}).Warn("Falling back to in-memory sweep history")
		}
	}

	orch := orchestrator.New(aggregator, notifier.FromService(connections, serviceLogger.WithComponent("notifier")), recorder,
		orchestrator.Config{Concurrency: cfg.Aggregator.Concurrency, SweepTimeout: cfg.SweepTimeout()},
		orchestrator.WithLogger(serviceLogger.WithComponent("orchestrator")),
		orchestrator.WithBaseContext(ctx))

	// Refresh triggers travel through Kafka when it is enabled.
	var triggerPublisher api.TriggerPublisher = publisher.NewLocalPublisher(orch)
	var triggerConsumer *consumer.TriggerConsumer
	if cfg.Databases.Kafka.Enabled {
		kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
		if err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeBroker}).Warn("Kafka unavailable, running refresh triggers in process")
		} else {
			triggerPublisher = publisher.NewTriggerPublisher(kafkaClient.Writer, cfg.Databases.Kafka.TriggerTopic, serviceLogger.WithComponent("publisher"))
			triggerConsumer = consumer.NewTriggerConsumer(kafkaClient.Reader, serviceLogger.WithComponent("consumer"))
			triggerConsumer.Start(ctx, func(ctx context.Context, trigger models.RefreshTrigger) error {
				_, err := orch.RunSweep(ctx, trigger)
				return err
			})
			healthChecks = append(healthChecks, api.WithHealthCheck("kafka", kafkaClient.HealthCheck))
			closers = append(closers, kafkaClient)
			serviceLogger.Info("Kafka trigger consumer started")
		}
	}

	var scheduler *orchestrator.Scheduler
	if cfg.Aggregator.Schedule.Enabled {
		scheduler, err = orchestrator.NewScheduler(orch, cfg.Aggregator.Schedule, serviceLogger.WithComponent("scheduler"))
		if err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeValidation}).Fatal("Invalid schedule")
		}
		go func() {
			if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Scheduler stopped")
			}
		}()
	}

	// Setup HTTP server
	gin.SetMode(gin.ReleaseMode)
	srv, err := pkghttp.NewServer(cfg, pkghttp.WithLogger(serviceLogger.WithComponent("http")))
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to create HTTP server")
	}
	apiOpts := append([]api.Option{api.WithHistory(recorder)}, healthChecks...)
	apiHandler := api.NewAPI(aggregator, triggerPublisher, connections, serviceLogger.WithComponent("api"), apiOpts...)
	api.RegisterRoutes(srv.Engine(), apiHandler, cfg.Auth.JwtSecret)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("HTTP server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Server forced to shutdown")
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()
	if triggerConsumer != nil {
		<-triggerConsumer.Done()
	}
	if err := orch.Wait(shutdownCtx); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Abandoning in-flight sweeps")
	}
	connections.Hub().CloseAll()

	for _, c := range closers {
		if err := c.Close(); err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error releasing resource")
		}
	}
	if err := mongo.Close(context.Background()); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error disconnecting from MongoDB")
	}
	if err := redis.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Redis")
	}
	if err := mysql.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing MySQL")
	}

	serviceLogger.Info("Server gracefully stopped")
}

func openContentStore(ctx context.Context, cfg *config.AppConfig, checks *[]api.Option, closers *[]io.Closer) (store.ContentStore, error) {
	var (
		base store.ContentStore
		err  error
	)
	switch cfg.Aggregator.Store {
	case "mongo":
		db, dbErr := mongo.Database(&cfg.Databases.MongoDB)
		if dbErr != nil {
			return nil, dbErr
		}
		retention := config.ParseDuration(cfg.Databases.MongoDB.Retention, 30*24*time.Hour)
		mongoStore, storeErr := store.NewMongoContentStore(db, cfg.Databases.MongoDB.Collection, cfg.CacheTTL(), retention)
		if storeErr != nil {
			return nil, storeErr
		}
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		*checks = append(*checks, api.WithHealthCheck("mongodb", mongo.HealthCheck))
		base = mongoStore
	case "sqlite":
		sqliteStore, storeErr := store.OpenSQLiteContentStore(cfg.Aggregator.SQLitePath, cfg.CacheTTL())
		if storeErr != nil {
			return nil, storeErr
		}
		*closers = append(*closers, sqliteStore)
		base = sqliteStore
	default:
		base, err = store.NewMemoryContentStore(cfg.CacheTTL())
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Aggregator.LRU.Enabled {
		return base, nil
	}
	cached, err := store.NewCachedContentStore(base, cfg.Aggregator.LRU.Capacity, config.ParseDuration(cfg.Aggregator.LRU.TTL, 5*time.Minute))
	if err != nil {
		return nil, err
	}
	return cached, nil
}

func openRegistry(cfg *config.AppConfig, checks *[]api.Option) (connection.Registry, error) {
	if cfg.Registry.Backend != "redis" {
		return connection.NewMemoryRegistry(), nil
	}
	client, err := redis.GetClient(&cfg.Databases.Redis)
	if err != nil {
		return nil, err
	}
	*checks = append(*checks, api.WithHealthCheck("redis", redis.HealthCheck))
	return connection.NewRedisRegistry(client), nil
}
