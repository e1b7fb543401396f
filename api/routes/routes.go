package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/certificate-processor/api/handlers"
	"github.com/feichai0017/certificate-processor/api/middleware"
	"github.com/feichai0017/certificate-processor/internal/auth"
	"github.com/feichai0017/certificate-processor/pkg/logger"
	"github.com/feichai0017/certificate-processor/pkg/metrics"
)

// Options 路由依赖
type Options struct {
	Verifier       *auth.Verifier
	Users          middleware.UserLookup
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	Logger         logger.Logger
}

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, opts Options) {
	// 全局中间件
	r.Use(
		middleware.RequestID(),
		middleware.Logger(opts.Logger),
		middleware.Metrics(opts.Metrics),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.GET("/healthz", h.Health.Health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	// API 版本组
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWT(opts.Verifier, opts.Users, opts.Logger))

	// 上传与审核流程
	uploads := v1.Group("/uploads")
	{
		uploads.POST("", h.Certificate.Upload)
		uploads.GET("/:sessionId", h.Certificate.GetUpload)
		uploads.DELETE("/:sessionId", h.Certificate.DiscardUpload)
		uploads.PUT("/:sessionId/transform", h.Certificate.Transform)
		uploads.POST("/:sessionId/extract", h.Certificate.Extract)
		uploads.POST("/:sessionId/extract/async", h.Certificate.ExtractAsync)
		uploads.GET("/:sessionId/form", h.Certificate.Form)
		uploads.POST("/:sessionId/draft", h.Certificate.SaveDraft)
		uploads.POST("/:sessionId/submit", h.Certificate.Submit)
		uploads.GET("/:sessionId/image", h.Certificate.DownloadImage)
	}

	v1.GET("/tasks/:taskId", h.Certificate.TaskStatus)

	// 证书记录
	certs := v1.Group("/certificates")
	{
		certs.GET("", h.Certificate.ListCertificates)
		certs.GET("/export", h.Certificate.ExportCertificates)
		certs.GET("/:id", h.Certificate.GetCertificate)
		certs.PUT("/:id", h.Certificate.UpdateCertificate)
		certs.POST("/:id/submit", h.Certificate.SubmitCertificate)
	}
}
