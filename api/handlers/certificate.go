package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/certificate-processor/api/middleware"
	"github.com/feichai0017/certificate-processor/internal/models"
	"github.com/feichai0017/certificate-processor/internal/service/certificate"
	"github.com/feichai0017/certificate-processor/internal/utils/validator"
	"github.com/feichai0017/certificate-processor/pkg/converters"
	"github.com/feichai0017/certificate-processor/pkg/logger"
	"github.com/feichai0017/certificate-processor/pkg/queue"
)

// CertificateService is the part of certificate.Service the API uses.
type CertificateService interface {
	Upload(ctx context.Context, user models.User, req certificate.UploadRequest) (models.WorkingUpload, error)
	GetUpload(ctx context.Context, user models.User, sessionID string) (models.WorkingUpload, error)
	DiscardUpload(ctx context.Context, user models.User, sessionID string) error
	Retransform(ctx context.Context, user models.User, sessionID string, opts models.TransformOptions) (models.WorkingUpload, error)
	Extract(ctx context.Context, user models.User, sessionID string) (models.WorkingUpload, error)
	EnqueueExtraction(ctx context.Context, user models.User, sessionID string) (string, error)
	Form(ctx context.Context, user models.User, sessionID string) (certificate.Form, error)
	SaveDraft(ctx context.Context, user models.User, sessionID string, fields models.ExtractedFields) (models.WorkingUpload, error)
	Submit(ctx context.Context, user models.User, sessionID string, fields models.ExtractedFields) (models.WorkingUpload, error)
	ProcessedImage(ctx context.Context, user models.User, sessionID string) (string, []byte, error)
	ListRecords(ctx context.Context, user models.User, status models.CertificateStatus) ([]models.CertificateRecord, error)
	GetRecord(ctx context.Context, user models.User, id int64) (*models.CertificateRecord, error)
	UpdateRecord(ctx context.Context, user models.User, id int64, fields models.ExtractedFields) (*models.CertificateRecord, error)
	SubmitRecord(ctx context.Context, user models.User, id int64) (*models.CertificateRecord, error)
	ExportRecords(ctx context.Context, user models.User, status models.CertificateStatus) (*converters.RecordExport, error)
}

// TaskStatusReader 查询异步任务状态
type TaskStatusReader interface {
	GetTaskStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error)
}

type CertificateHandler struct {
	service CertificateService
	tasks   TaskStatusReader
	logger  logger.Logger
}

// ExtractResponse carries the working state and the form. On extraction
// failure it is sent with 502 and an empty form so entry can continue.
type ExtractResponse struct {
	Upload models.WorkingUpload `json:"upload"`
	Form   certificate.Form     `json:"form"`
	Error  string               `json:"error,omitempty"`
}

func NewCertificateHandler(service CertificateService, tasks TaskStatusReader, logger logger.Logger) *CertificateHandler {
	return &CertificateHandler{
		service: service,
		tasks:   tasks,
		logger:  logger,
	}
}

// Upload 上传证书文件
func (h *CertificateHandler) Upload(c *gin.Context) {
	user, ctx := h.actor(c)

	header, err := c.FormFile("file")
	if err != nil {
		h.badRequest(c, "Invalid file upload", err)
		return
	}
	file, err := header.Open()
	if err != nil {
		h.badRequest(c, "Invalid file upload", err)
		return
	}
	defer file.Close()

	// 多读一个字节即可判断超限
	data, err := io.ReadAll(io.LimitReader(file, validator.MaxFileSize+1))
	if err != nil {
		h.badRequest(c, "Failed to read file", err)
		return
	}

	state, err := h.service.Upload(ctx, user, certificate.UploadRequest{Filename: header.Filename, Data: data})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, state)
}

// GetUpload 查询上传会话
func (h *CertificateHandler) GetUpload(c *gin.Context) {
	user, ctx := h.actor(c)
	state, err := h.service.GetUpload(ctx, user, c.Param("sessionId"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// DiscardUpload 放弃上传会话
func (h *CertificateHandler) DiscardUpload(c *gin.Context) {
	user, ctx := h.actor(c)
	if err := h.service.DiscardUpload(ctx, user, c.Param("sessionId")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Transform 重新选择页码、旋转和缩放
func (h *CertificateHandler) Transform(c *gin.Context) {
	user, ctx := h.actor(c)

	opts := models.DefaultTransformOptions()
	if err := c.ShouldBindJSON(&opts); err != nil {
		h.badRequest(c, "Invalid transform options", err)
		return
	}

	state, err := h.service.Retransform(ctx, user, c.Param("sessionId"), opts)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Extract 同步提取字段
func (h *CertificateHandler) Extract(c *gin.Context) {
	user, ctx := h.actor(c)

	state, err := h.service.Extract(ctx, user, c.Param("sessionId"))
	var extErr *models.ExtractionError
	switch {
	case errors.As(err, &extErr):
		status, body := statusFor(err)
		h.logger.Warn("Extraction failed, opening empty form",
			logger.String("sessionId", state.SessionID),
			logger.Error(err),
		)
		c.JSON(status, ExtractResponse{
			Upload: state,
			Form:   certificate.ReviewForm(user, state),
			Error:  body.Message,
		})
		return
	case err != nil:
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ExtractResponse{Upload: state, Form: certificate.ReviewForm(user, state)})
}

// ExtractAsync 异步提取字段
func (h *CertificateHandler) ExtractAsync(c *gin.Context) {
	user, ctx := h.actor(c)

	taskID, err := h.service.EnqueueExtraction(ctx, user, c.Param("sessionId"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"taskId": taskID,
		"status": queue.StatusPending,
	})
}

// TaskStatus 查询异步任务状态，只有发起人可见
func (h *CertificateHandler) TaskStatus(c *gin.Context) {
	if h.tasks == nil {
		h.handleError(c, certificate.ErrAsyncUnavailable)
		return
	}
	user, ctx := h.actor(c)
	status, err := h.tasks.GetTaskStatus(ctx, c.Param("taskId"))
	if err != nil {
		h.logger.Info("Task status not found", logger.String("taskId", c.Param("taskId")), logger.Error(err))
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Message: "task not found"})
		return
	}
	// 他人的任务按不存在处理
	if status.UserID != user.ID {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Message: "task not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// Form 获取审核表单
func (h *CertificateHandler) Form(c *gin.Context) {
	user, ctx := h.actor(c)
	form, err := h.service.Form(ctx, user, c.Param("sessionId"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

// SaveDraft 保存草稿
func (h *CertificateHandler) SaveDraft(c *gin.Context) {
	user, ctx := h.actor(c)

	var fields models.ExtractedFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		h.badRequest(c, "Invalid certificate fields", err)
		return
	}

	state, err := h.service.SaveDraft(ctx, user, c.Param("sessionId"), fields)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Submit 提交证书
func (h *CertificateHandler) Submit(c *gin.Context) {
	user, ctx := h.actor(c)

	var fields models.ExtractedFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		h.badRequest(c, "Invalid certificate fields", err)
		return
	}

	state, err := h.service.Submit(ctx, user, c.Param("sessionId"), fields)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// DownloadImage 下载处理后的图片
func (h *CertificateHandler) DownloadImage(c *gin.Context) {
	user, ctx := h.actor(c)

	filename, data, err := h.service.ProcessedImage(ctx, user, c.Param("sessionId"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "image/jpeg", data)
}

// ListCertificates 我的证书
func (h *CertificateHandler) ListCertificates(c *gin.Context) {
	user, ctx := h.actor(c)

	status, ok := statusFilter(c)
	if !ok {
		return
	}
	records, err := h.service.ListRecords(ctx, user, status)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if records == nil {
		records = []models.CertificateRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}

// ExportCertificates 导出全部字段
func (h *CertificateHandler) ExportCertificates(c *gin.Context) {
	user, ctx := h.actor(c)

	status, ok := statusFilter(c)
	if !ok {
		return
	}
	export, err := h.service.ExportRecords(ctx, user, status)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, export)
}

// GetCertificate 查询单条证书
func (h *CertificateHandler) GetCertificate(c *gin.Context) {
	user, ctx := h.actor(c)
	id, ok := h.recordID(c)
	if !ok {
		return
	}

	rec, err := h.service.GetRecord(ctx, user, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// UpdateCertificate 修改草稿证书
func (h *CertificateHandler) UpdateCertificate(c *gin.Context) {
	user, ctx := h.actor(c)
	id, ok := h.recordID(c)
	if !ok {
		return
	}

	var fields models.ExtractedFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		h.badRequest(c, "Invalid certificate fields", err)
		return
	}

	rec, err := h.service.UpdateRecord(ctx, user, id, fields)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// SubmitCertificate 提交草稿证书
func (h *CertificateHandler) SubmitCertificate(c *gin.Context) {
	user, ctx := h.actor(c)
	id, ok := h.recordID(c)
	if !ok {
		return
	}

	rec, err := h.service.SubmitRecord(ctx, user, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// actor returns the authenticated user and a request context carrying the
// client details recorded with user actions.
func (h *CertificateHandler) actor(c *gin.Context) (models.User, context.Context) {
	user, _ := middleware.CurrentUser(c)
	ctx := certificate.WithRequestInfo(c.Request.Context(), certificate.RequestInfo{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	return user, ctx
}

func (h *CertificateHandler) recordID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, "Invalid certificate id", err)
		return 0, false
	}
	return id, true
}

func statusFilter(c *gin.Context) (models.CertificateStatus, bool) {
	status := models.CertificateStatus(c.Query("status"))
	switch status {
	case "", models.StatusDraft, models.StatusSubmitted:
		return status, true
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad request", Message: "status must be draft or submitted"})
	return "", false
}
