package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feichai0017/certificate-processor/config"
	"github.com/feichai0017/certificate-processor/internal/app"
	"github.com/feichai0017/certificate-processor/pkg/logger"
	"github.com/feichai0017/certificate-processor/pkg/worker"
)

func main() {
	// 初始化日志
	log, err := app.NewLoggerFromConfig("certificate-worker", []string{"stdout", "logs/worker.log"})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.Build(initCtx, log)
	initCancel()
	if err != nil {
		log.Error("Failed to initialize application", logger.Error(err))
		os.Exit(1)
	}
	defer application.Close()

	redisCfg := config.GetRedisConfig()
	workerCfg := config.GetWorkerConfig()

	extractionWorker := worker.NewExtractionWorker(&worker.Config{
		Redis:       application.Queue.Config().RedisOpt(),
		Concurrency: workerCfg.Concurrency,
		Queues:      worker.DefaultQueues(),
	}, application.Service, application.Queue, log.Named("worker"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动 worker
	if err := extractionWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Worker started",
		logger.String("redis", redisCfg.Addr),
		logger.Int("concurrency", workerCfg.Concurrency),
	)

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// 优雅关闭
	log.Info("Shutting down worker...")
	extractionWorker.Stop()
	log.Info("Worker stopped")
}
