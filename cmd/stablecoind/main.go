package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Aidin1998/stablecoin/api"
	"github.com/Aidin1998/stablecoin/internal/collaborator"
	"github.com/Aidin1998/stablecoin/internal/config"
	"github.com/Aidin1998/stablecoin/internal/credential"
	"github.com/Aidin1998/stablecoin/internal/custody"
	"github.com/Aidin1998/stablecoin/internal/database"
	"github.com/Aidin1998/stablecoin/internal/events"
	"github.com/Aidin1998/stablecoin/internal/issuance"
	"github.com/Aidin1998/stablecoin/internal/ledger"
	"github.com/Aidin1998/stablecoin/internal/locks"
	"github.com/Aidin1998/stablecoin/internal/oracle"
	"github.com/Aidin1998/stablecoin/internal/registry"
	"github.com/Aidin1998/stablecoin/internal/risk"
	"github.com/Aidin1998/stablecoin/internal/telemetry"
	"github.com/Aidin1998/stablecoin/pkg/logger"
)

const serviceSubject = "stablecoin-core"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Bootstrap logger; the configured level is applied once config is loaded
	zapLogger, level := logger.NewLoggerWithLevel("info")
	defer zapLogger.Sync()

	manager := config.NewManager(zapLogger)
	cfg, err := manager.Load(*configPath)
	if err != nil {
		zapLogger.Fatal("Failed to load configuration", zap.Error(err))
	}
	level.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	manager.OnReload(func(old, updated *config.Config) {
		if old.Logging.Level != updated.Logging.Level {
			level.SetLevel(logger.ParseLevel(updated.Logging.Level))
			zapLogger.Info("Log level changed", zap.String("level", updated.Logging.Level))
		}
	})
	manager.Watch()

	db, err := database.Open(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zapLogger.Fatal("Failed to migrate database", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, nil)
	if err != nil {
		zapLogger.Fatal("Failed to set up telemetry", zap.Error(err))
	}
	go reportPoolStats(ctx, db, cfg.Database.Driver, zapLogger)

	// Price oracle and risk
	var feed oracle.PriceFeed
	switch cfg.Oracle.Source {
	case "hermes":
		feed = oracle.NewHermesFeed(cfg.Oracle.BaseURL, cfg.Oracle.Timeout, cfg.Oracle.Retries, zapLogger)
	default:
		zapLogger.Warn("Using static price feed", zap.Int64("price", cfg.Oracle.StaticPrice))
		feed = oracle.NewStaticFeed(cfg.Oracle.StaticPrice)
	}
	priceOracle := oracle.NewClient(feed, cfg.Oracle.FeedID, zapLogger, oracle.WithMaxAge(cfg.Oracle.MaxAge))
	riskEngine := risk.NewEngine(priceOracle, zapLogger)

	configRegistry := registry.NewService(zapLogger, db, cfg.Protocol.DebtMint)

	// Collaborators
	serviceSigner := credential.NewSigner(cfg.Auth.ServiceSecret, cfg.Auth.Issuer)
	serviceCredential := credential.NewServiceCredential(serviceSigner, serviceSubject)
	vault, issuer := collaborators(cfg, serviceCredential, zapLogger)

	// Distributed state
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var locker locks.Locker = locks.NewLocalLocker()
	if cfg.Locks.Backend == "redis" {
		if redisClient == nil {
			zapLogger.Fatal("Redis lock backend requires redis.address")
		}
		locker = locks.NewRedisLocker(redisClient, cfg.Locks.TTL, cfg.Locks.RetryInterval)
	}

	publishers := []events.Publisher{events.NewLogPublisher(zapLogger)}
	if cfg.Kafka.Enabled {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zapLogger)
		defer kafkaPublisher.Close()
		publishers = append(publishers, kafkaPublisher)
	}
	if redisClient != nil && cfg.Redis.EventStream != "" {
		publishers = append(publishers, events.NewRedisPublisher(redisClient, cfg.Redis.EventStream, zapLogger))
	}

	positionLedger := ledger.NewService(zapLogger, db, configRegistry, riskEngine, vault, issuer, locker,
		ledger.WithEvents(events.NewEventPublisher(publishers, zapLogger)))

	apiServer := api.NewServer(zapLogger, cfg.Server, positionLedger, configRegistry,
		credential.NewSigner(cfg.Auth.JWTSecret, cfg.Auth.Issuer))

	go func() {
		if err := apiServer.Start(); err != nil {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	// Wait for interrupt to shutdown
	<-ctx.Done()
	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shut down API server", zap.Error(err))
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		zapLogger.Error("Failed to flush telemetry", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	zapLogger.Info("Server exited properly")
}

func collaborators(cfg *config.Config, tokens credential.TokenSource, zapLogger *zap.Logger) (custody.Vault, issuance.Gateway) {
	var vault custody.Vault
	if cfg.Custody.Mode == "http" {
		vault = custody.NewHTTPVault(collaborator.NewClient(collaboratorOptions(cfg.Custody), tokens, zapLogger.Named("custody")))
	} else {
		zapLogger.Warn("Using in-memory custody vault")
		vault = custody.NewMemoryVault()
	}

	var issuer issuance.Gateway
	if cfg.Issuance.Mode == "http" {
		issuer = issuance.NewHTTPGateway(collaborator.NewClient(collaboratorOptions(cfg.Issuance), tokens, zapLogger.Named("issuance")))
	} else {
		zapLogger.Warn("Using in-memory issuance gateway")
		issuer = issuance.NewMemoryGateway()
	}
	return vault, issuer
}

func collaboratorOptions(cfg config.CollaboratorConfig) collaborator.Options {
	return collaborator.Options{
		BaseURL:  cfg.BaseURL,
		Audience: cfg.Audience,
		Timeout:  cfg.Timeout,
		Retries:  cfg.Retries,
	}
}

// reportPoolStats publishes connection pool gauges every 30s
func reportPoolStats(ctx context.Context, db *gorm.DB, name string, zapLogger *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := database.ReportPoolStats(db, name); err != nil {
				zapLogger.Warn("Failed to report pool stats", zap.Error(err))
			}
		}
	}
}
