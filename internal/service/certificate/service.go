package certificate

import (
	"context"

	"github.com/feichai0017/certificate-processor/internal/agent/document"
	"github.com/feichai0017/certificate-processor/internal/models"
	"github.com/feichai0017/certificate-processor/internal/utils/validator"
	"github.com/feichai0017/certificate-processor/pkg/converters"
	"github.com/feichai0017/certificate-processor/pkg/logger"
	"github.com/feichai0017/certificate-processor/pkg/metrics"
	"github.com/feichai0017/certificate-processor/pkg/queue"
	"github.com/feichai0017/certificate-processor/pkg/session"
	"github.com/feichai0017/certificate-processor/pkg/storage"
)

// Loaders resolves the document loader for a file extension.
type Loaders interface {
	GetLoader(ext string) (document.Loader, error)
}

// Extractor reads the certificate fields from an encoded image.
type Extractor interface {
	Extract(ctx context.Context, dataURI string) (models.ExtractedFields, error)
}

// RecordStore 证书记录存储
type RecordStore interface {
	CreateDraft(ctx context.Context, fields models.ExtractedFields, uploadFileID, ownerID int64) (int64, error)
	UpdateDraft(ctx context.Context, id int64, fields models.ExtractedFields) (bool, error)
	Submit(ctx context.Context, id int64) (bool, error)
	GetByID(ctx context.Context, id int64) (*models.CertificateRecord, error)
	ListForUser(ctx context.Context, user models.User) ([]models.CertificateRecord, error)
	ListAll(ctx context.Context, status models.CertificateStatus) ([]models.CertificateRecord, error)
}

// UploadRegistry 上传文件登记
type UploadRegistry interface {
	Create(ctx context.Context, file *models.UploadedFileRecord) (int64, error)
}

// ActionLogger 操作日志
type ActionLogger interface {
	LogAction(ctx context.Context, action models.UserAction) error
}

// Enqueuer 异步任务入队
type Enqueuer interface {
	Enqueue(ctx context.Context, task *queue.Task) error
}

// Dependencies are the collaborators of the service. Queue and Actions may
// be nil: async extraction is then unavailable and actions are not logged.
type Dependencies struct {
	Loaders   Loaders
	Extractor Extractor
	Records   RecordStore
	Uploads   UploadRegistry
	Actions   ActionLogger
	Sessions  session.Store
	Storage   storage.Storage
	Queue     Enqueuer
	Files     *validator.DocumentValidator
	Fields    *validator.SubmissionValidator
	Metrics   *metrics.Metrics
	Logger    logger.Logger
}

// Service drives one certificate from upload to submission. Per-upload state
// lives in the session store as an immutable WorkingUpload.
type Service struct {
	loaders   Loaders
	extractor Extractor
	records   RecordStore
	uploads   UploadRegistry
	actions   ActionLogger
	sessions  session.Store
	storage   storage.Storage
	queue     Enqueuer
	files     *validator.DocumentValidator
	fields    *validator.SubmissionValidator
	converter converters.RecordConverter
	metrics   *metrics.Metrics
	logger    logger.Logger
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	files := deps.Files
	if files == nil {
		files = validator.NewDocumentValidator(log, true)
	}
	fields := deps.Fields
	if fields == nil {
		fields = validator.NewSubmissionValidator(nil)
	}

	return &Service{
		loaders:   deps.Loaders,
		extractor: deps.Extractor,
		records:   deps.Records,
		uploads:   deps.Uploads,
		actions:   deps.Actions,
		sessions:  deps.Sessions,
		storage:   deps.Storage,
		queue:     deps.Queue,
		files:     files,
		fields:    fields,
		converter: converters.NewJSONConverter(),
		metrics:   deps.Metrics,
		logger:    log,
	}
}

type requestInfoKey struct{}

// RequestInfo is the client address recorded with user actions.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

// WithRequestInfo attaches client details for action logging.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func requestInfo(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// audit 记录用户操作，失败只记日志
func (s *Service) audit(ctx context.Context, user models.User, action, details string) {
	if s.actions == nil {
		return
	}
	info := requestInfo(ctx)
	err := s.actions.LogAction(ctx, models.UserAction{
		UserID:    user.ID,
		Action:    action,
		Details:   details,
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
	})
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn("Failed to log user action",
			logger.String("action", action),
			logger.Error(err),
		)
	}
}

// loadSession returns the session if it belongs to user.
func (s *Service) loadSession(ctx context.Context, user models.User, sessionID string) (models.WorkingUpload, error) {
	state, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return models.WorkingUpload{}, err
	}
	if state.UserID != user.ID {
		return models.WorkingUpload{}, models.ErrForbidden
	}
	return state, nil
}

// GetUpload 返回当前会话状态
func (s *Service) GetUpload(ctx context.Context, user models.User, sessionID string) (models.WorkingUpload, error) {
	return s.loadSession(ctx, user, sessionID)
}

// DiscardUpload drops the working state. Stored originals and records stay.
func (s *Service) DiscardUpload(ctx context.Context, user models.User, sessionID string) error {
	if _, err := s.loadSession(ctx, user, sessionID); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, sessionID)
}
