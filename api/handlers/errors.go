package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/certificate-processor/internal/models"
	"github.com/feichai0017/certificate-processor/internal/service/certificate"
	"github.com/feichai0017/certificate-processor/pkg/logger"
)

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// statusFor maps a service error to its HTTP status and public message.
func statusFor(err error) (int, ErrorResponse) {
	var (
		verrs   models.ValidationErrors
		verr    models.ValidationError
		docErr  *models.DocumentError
		extErr  *models.ExtractionError
		persErr *models.PersistenceError
	)

	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest, ErrorResponse{Error: "validation failed", Message: verrs.Error(), Details: verrs.Messages()}
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrorResponse{Error: "validation failed", Message: verr.Message, Details: []string{verr.Message}}
	case errors.As(err, &docErr):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid document", Message: "文件无法解析，请检查文件是否损坏"}
	case errors.As(err, &extErr):
		return http.StatusBadGateway, ErrorResponse{Error: "extraction failed", Message: extErr.Cause}
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: err.Error()}
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "not found", Message: err.Error()}
	case errors.Is(err, models.ErrNotDraft):
		return http.StatusConflict, ErrorResponse{Error: "conflict", Message: err.Error()}
	case errors.Is(err, certificate.ErrAsyncUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "unavailable", Message: err.Error()}
	case errors.As(err, &persErr):
		return http.StatusInternalServerError, ErrorResponse{Error: "persistence failure", Message: "保存失败，请稍后重试"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal error", Message: "internal server error"}
	}
}

// handleError 统一错误处理
func (h *CertificateHandler) handleError(c *gin.Context, err error) {
	status, response := statusFor(err)

	log := logger.FromContext(c.Request.Context(), h.logger)
	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
		logger.Error(err),
	}
	if status >= http.StatusInternalServerError {
		log.Error(response.Error, fields...)
	} else {
		log.Info(response.Error, fields...)
	}

	c.JSON(status, response)
}

func (h *CertificateHandler) badRequest(c *gin.Context, message string, err error) {
	h.logger.Info(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad request", Message: message})
}
