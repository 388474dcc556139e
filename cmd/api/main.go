package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gradebook-api/internal/config"
	"github.com/noah-isme/gradebook-api/internal/database"
	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/handler"
	"github.com/noah-isme/gradebook-api/internal/middleware"
	"github.com/noah-isme/gradebook-api/internal/observability"
	"github.com/noah-isme/gradebook-api/internal/repository"
	"github.com/noah-isme/gradebook-api/internal/router"
	"github.com/noah-isme/gradebook-api/internal/service"
	cloud "github.com/noah-isme/gradebook-api/pkg/cloudinary"
	"github.com/noah-isme/gradebook-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		startupLogger := zerolog.New(os.Stderr)
		startupLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg)
	observability.RegisterMetrics()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	healthChecks := []handler.DependencyCheck{{Name: "database", Ping: pingDatabase(db)}}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		healthChecks = append(healthChecks, handler.DependencyCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	} else {
		logger.Warn().Msg("redis url not set, evaluation cache disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}
	events := service.NewNATSEventPublisher(natsConn, cfg.NATSSubject, logger)

	fileStorage, staticDir, err := newFileStorage(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to configure document storage")
	}

	engine, err := grading.NewEngine(grading.Options{
		Policy:         grading.Policy(cfg.GradingPolicy),
		MinCoefficient: cfg.MinCoefficient,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("policy", cfg.GradingPolicy).Msg("invalid grading configuration")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	rosterRepo := repository.NewRosterRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	examDateRepo := repository.NewExamDateRepository(db)

	rosterService := service.NewRosterService(rosterRepo, evaluationRepo, engine, validate, service.RosterServiceConfig{
		Cache:    redisClient,
		CacheTTL: cfg.EvaluationCacheTTL,
		Events:   events,
	}, logger)
	evaluationService := service.NewEvaluationService(engine, validate, logger)
	exportService := service.NewExportService(rosterRepo, engine, logger)
	importService := service.NewImportService(rosterService, logger)
	documentService := service.NewDocumentService(fileStorage, documentRepo, validate, service.DocumentServiceConfig{
		Driver:    cfg.StorageDriver,
		MaxSizeMB: cfg.MaxUploadMB,
		Events:    events,
	}, logger)
	examDateService := service.NewExamDateService(examDateRepo, validate, logger)
	authService := service.NewAuthService(service.AuthConfig{
		Username:     cfg.AdminUsername,
		PasswordHash: cfg.AdminPasswordHash,
		Secret:       cfg.JWTSecret,
		TTL:          cfg.JWTTTL,
	}, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.MaxUploadMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    cfg.IsDevelopment(),
	})
	router.Register(app, cfg, router.Dependencies{
		RosterHandler:     handler.NewRosterHandler(rosterService, logger),
		EvaluationHandler: handler.NewEvaluationHandler(evaluationService, logger),
		TranscriptHandler: handler.NewTranscriptHandler(exportService, importService, logger),
		DocumentHandler:   handler.NewDocumentHandler(documentService, logger),
		ExamDateHandler:   handler.NewExamDateHandler(examDateService, logger),
		AuthHandler:       handler.NewAuthHandler(authService, logger),
		HealthChecks:      healthChecks,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		StaticDir:         staticDir,
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Str("policy", engine.Policy().String()).Msg("gradebook api listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout)
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return logger.Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()
}

// newFileStorage returns the document store and, for the local driver, the directory to serve.
func newFileStorage(cfg config.Config, logger zerolog.Logger) (service.FileStorage, string, error) {
	switch cfg.StorageDriver {
	case config.StorageCloudinary:
		store, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryFolder,
		}, logger)
		return store, "", err
	case config.StorageS3:
		store, err := storage.NewS3(storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			PublicURL: cfg.S3PublicURL,
		}, logger)
		return store, "", err
	default:
		store, err := storage.NewLocal(cfg.StorageLocalDir, cfg.StoragePublicURL, logger)
		return store, cfg.StorageLocalDir, err
	}
}

func pingDatabase(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
