package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/certificate-processor/api/handlers"
	"github.com/feichai0017/certificate-processor/api/routes"
	"github.com/feichai0017/certificate-processor/config"
	"github.com/feichai0017/certificate-processor/internal/app"
	"github.com/feichai0017/certificate-processor/internal/auth"
	"github.com/feichai0017/certificate-processor/internal/utils/validator"
	"github.com/feichai0017/certificate-processor/pkg/logger"
)

func main() {
	// init logger
	log, err := app.NewLoggerFromConfig("certificate-api", []string{"stdout", "logs/app.log"})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	serverCfg := config.GetServerConfig()
	authCfg := config.GetAuthConfig()
	if authCfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.Build(ctx, log)
	cancel()
	if err != nil {
		log.Fatal("Failed to initialize application", logger.Error(err))
	}
	defer application.Close()

	// init handlers
	h := handlers.NewHandlers(application.Service, application.Queue, log.Named("api"))

	gin.SetMode(serverCfg.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = validator.MaxFileSize + 1<<20
	routes.SetupRoutes(r, h, routes.Options{
		Verifier:       auth.NewVerifier(authCfg.JWTSecret, authCfg.Issuer),
		Users:          application.Users,
		Metrics:        application.Metrics,
		AllowedOrigins: serverCfg.AllowedOrigins,
		Logger:         log.Named("http"),
	})

	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// start server
	go func() {
		log.Info("Server starting", logger.String("addr", serverCfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// extraction calls may take up to a minute
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 70*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
