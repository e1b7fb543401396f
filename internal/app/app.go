package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/certificate-processor/config"
	"github.com/feichai0017/certificate-processor/internal/agent"
	"github.com/feichai0017/certificate-processor/internal/agent/extractor"
	"github.com/feichai0017/certificate-processor/internal/repository"
	"github.com/feichai0017/certificate-processor/internal/service/certificate"
	"github.com/feichai0017/certificate-processor/internal/utils/validator"
	"github.com/feichai0017/certificate-processor/pkg/database"
	"github.com/feichai0017/certificate-processor/pkg/logger"
	"github.com/feichai0017/certificate-processor/pkg/metrics"
	"github.com/feichai0017/certificate-processor/pkg/queue"
	"github.com/feichai0017/certificate-processor/pkg/session"
	"github.com/feichai0017/certificate-processor/pkg/storage"
)

// App holds the process-wide handles shared by the API server and the
// worker. Everything is constructed here and injected downward.
type App struct {
	Service   *certificate.Service
	Users     *repository.UserRepository
	Queue     *queue.AsynqQueue
	Metrics   *metrics.Metrics
	DB        *sqlx.DB
	Redis     *redis.Client
	extractor *extractor.Client
	logger    logger.Logger
}

// NewLoggerFromConfig 根据配置创建日志
func NewLoggerFromConfig(service string, defaultPaths []string) (logger.Logger, error) {
	cfg := config.GetLoggerConfig()
	paths := cfg.OutputPaths
	if len(paths) == 0 {
		paths = defaultPaths
	}
	return logger.NewLogger(
		logger.WithLevel(cfg.Level),
		logger.WithEncoding(cfg.Encoding),
		logger.WithOutputPaths(paths),
		logger.WithService(service),
	)
}

// Build 初始化所有依赖
func Build(ctx context.Context, log logger.Logger) (*App, error) {
	m := metrics.New()

	dbCfg := config.GetDatabaseConfig()
	db, err := database.NewPostgres(*dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if dbCfg.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Info("Database schema applied")
	}

	redisCfg := config.GetRedisConfig()
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	store, err := storage.NewStorage(storage.StorageType(config.GetStorageConfig().Type), log.Named("storage"))
	if err != nil {
		db.Close()
		rdb.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	exCfg := config.GetExtractorConfig()
	if exCfg.APIKey == "" {
		log.Warn("ZHIPU_API_KEY is not set, extraction requests will be rejected")
	}
	ex := extractor.NewClient(extractor.Config{
		Endpoint:    exCfg.Endpoint,
		APIKey:      exCfg.APIKey,
		Model:       exCfg.Model,
		Temperature: exCfg.Temperature,
		MaxTokens:   exCfg.MaxTokens,
		Timeout:     exCfg.Timeout,
		MaxPoolSize: exCfg.MaxPoolSize,
	}, log.Named("extractor"), m)

	workerCfg := config.GetWorkerConfig()
	q := queue.NewAsynqQueue(queue.QueueConfig{
		RedisAddr:      redisCfg.Addr,
		RedisPassword:  redisCfg.Password,
		RedisDB:        redisCfg.DB,
		MaxRetries:     workerCfg.MaxRetry,
		ProcessTimeout: workerCfg.TaskTimeout,
	}, rdb)

	serverCfg := config.GetServerConfig()
	users := repository.NewUserRepository(db)
	svc := certificate.NewService(certificate.Dependencies{
		Loaders:   agent.NewLoaderFactory(log.Named("loader")),
		Extractor: ex,
		Records:   repository.NewCertificateRepository(db),
		Uploads:   repository.NewUploadRepository(db),
		Actions:   users,
		Sessions:  session.NewRedisStore(rdb, serverCfg.SessionTTL),
		Storage:   store,
		Queue:     q,
		Files:     validator.NewDocumentValidator(log.Named("validator"), serverCfg.SniffContent),
		Fields:    validator.NewSubmissionValidator(nil),
		Metrics:   m,
		Logger:    log.Named("certificate"),
	})

	return &App{
		Service:   svc,
		Users:     users,
		Queue:     q,
		Metrics:   m,
		DB:        db,
		Redis:     rdb,
		extractor: ex,
		logger:    log,
	}, nil
}

// Close 释放连接
func (a *App) Close() error {
	return errors.Join(
		a.extractor.Close(),
		a.Queue.Close(),
		a.Redis.Close(),
		a.DB.Close(),
	)
}
