package certificate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/certificate-processor/internal/agent"
	"github.com/feichai0017/certificate-processor/internal/agent/document"
	imgproc "github.com/feichai0017/certificate-processor/internal/agent/document/image"
	"github.com/feichai0017/certificate-processor/internal/models"
	"github.com/feichai0017/certificate-processor/internal/utils/validator"
	"github.com/feichai0017/certificate-processor/pkg/logger"
	"github.com/feichai0017/certificate-processor/pkg/storage"
)

// UploadRequest 上传的原始文件
type UploadRequest struct {
	Filename string
	Data     []byte
}

// Upload validates the file, stores the original and renders the canonical
// working image with default options. Nothing is persisted when validation
// or rendering fails.
func (s *Service) Upload(ctx context.Context, user models.User, req UploadRequest) (models.WorkingUpload, error) {
	log := logger.FromContext(ctx, s.logger)

	file := models.UploadedFile{
		Name:      filepath.Base(req.Filename),
		Extension: validator.Extension(req.Filename),
		Size:      int64(len(req.Data)),
		Data:      req.Data,
	}

	result := s.files.Validate(file)
	if !result.IsValid {
		s.metrics.ObserveUpload(string(file.FileType()), "rejected")
		log.Info("Upload rejected",
			logger.String("filename", file.Name),
			logger.String("reason", result.Reason),
		)
		return models.WorkingUpload{}, result.Err()
	}

	loader, err := s.loaders.GetLoader(file.Extension)
	if err != nil {
		s.metrics.ObserveUpload(string(file.FileType()), "rejected")
		return models.WorkingUpload{}, models.ValidationErrors{{
			Code:    "INVALID_FILE_TYPE",
			Message: validator.ReasonUnsupportedType,
			Field:   "extension",
		}}
	}

	opts := models.DefaultTransformOptions()
	objectKey := storage.NewObjectKey(file.Extension)
	mimeType, _ := agent.MIMEType(file.Extension)

	var (
		stored  bool
		encoded models.EncodedImage
		info    *models.DocumentInfo
	)

	// 原件存储与渲染并行
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := s.storage.Store(gctx, objectKey, bytes.NewReader(file.Data), file.Size, mimeType); err != nil {
			return &models.PersistenceError{Op: "store original", Err: err}
		}
		stored = true
		return nil
	})
	g.Go(func() error {
		var err error
		encoded, info, opts, err = s.render(gctx, loader, file.Data, opts)
		return err
	})

	if err := g.Wait(); err != nil {
		if stored {
			s.removeOriginal(ctx, objectKey)
		}
		s.metrics.ObserveUpload(string(file.FileType()), "failed")
		log.Error("Upload processing failed",
			logger.String("filename", file.Name),
			logger.Error(err),
		)
		return models.WorkingUpload{}, err
	}

	uploadID, err := s.uploads.Create(ctx, &models.UploadedFileRecord{
		Filename: file.Name,
		FilePath: objectKey,
		FileType: string(file.FileType()),
		FileSize: file.Size,
		UserID:   user.ID,
	})
	if err != nil {
		s.removeOriginal(ctx, objectKey)
		s.metrics.ObserveUpload(string(file.FileType()), "failed")
		return models.WorkingUpload{}, err
	}

	original := file
	original.Data = nil
	state := models.WorkingUpload{
		SessionID:    uuid.NewString(),
		UserID:       user.ID,
		Original:     original,
		ObjectKey:    objectKey,
		UploadFileID: uploadID,
		Info:         info,
	}.WithImage(encoded, opts)

	if err := s.sessions.Put(ctx, state); err != nil {
		return models.WorkingUpload{}, fmt.Errorf("failed to save upload session: %w", err)
	}

	s.metrics.ObserveUpload(string(file.FileType()), "accepted")
	s.audit(ctx, user, "upload_certificate", fmt.Sprintf("上传证书文件: %s", file.Name))
	log.Info("Certificate uploaded",
		logger.String("sessionId", state.SessionID),
		logger.String("filename", file.Name),
		logger.Int64("uploadFileId", uploadID),
	)
	return state, nil
}

// Retransform re-renders the stored original with new page and transform
// options and replaces the working image. Extracted fields are kept.
func (s *Service) Retransform(ctx context.Context, user models.User, sessionID string, opts models.TransformOptions) (models.WorkingUpload, error) {
	state, err := s.loadSession(ctx, user, sessionID)
	if err != nil {
		return models.WorkingUpload{}, err
	}

	loader, err := s.loaders.GetLoader(state.Original.Extension)
	if err != nil {
		return models.WorkingUpload{}, &models.DocumentError{Op: "select loader", Err: err}
	}

	data, err := storage.ReadAll(ctx, s.storage, state.ObjectKey)
	if err != nil {
		return models.WorkingUpload{}, &models.PersistenceError{Op: "load original", Err: err}
	}

	encoded, info, opts, err := s.render(ctx, loader, data, normalizeOptions(opts))
	if err != nil {
		return models.WorkingUpload{}, err
	}

	next, _, err := s.sessions.Update(ctx, sessionID, func(cur models.WorkingUpload) (models.WorkingUpload, error) {
		cur.Info = info
		return cur.WithImage(encoded, opts), nil
	})
	if err != nil {
		return models.WorkingUpload{}, err
	}
	return next, nil
}

// ProcessedImage returns the decoded bytes of the working image as a JPEG
// download named processed_<original basename>.jpg.
func (s *Service) ProcessedImage(ctx context.Context, user models.User, sessionID string) (string, []byte, error) {
	state, err := s.loadSession(ctx, user, sessionID)
	if err != nil {
		return "", nil, err
	}

	_, raw, err := imgproc.DecodeDataURI(state.Image.DataURI)
	if err != nil {
		return "", nil, &models.DocumentError{Op: "decode working image", Err: err}
	}
	return ProcessedFilename(state.Original.Name), raw, nil
}

// ProcessedFilename 处理后图片的下载文件名
func ProcessedFilename(original string) string {
	base := filepath.Base(original)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "certificate"
	}
	return "processed_" + base + ".jpg"
}

// render loads the requested page, then rotates, bounds and encodes it.
// The returned options carry the clamped page index.
func (s *Service) render(ctx context.Context, loader document.Loader, data []byte, opts models.TransformOptions) (models.EncodedImage, *models.DocumentInfo, models.TransformOptions, error) {
	raster, err := loader.Load(ctx, data, opts.PageIndex)
	if err != nil {
		return models.EncodedImage{}, nil, opts, asDocumentError("load document", err)
	}
	opts.PageIndex = raster.PageIndex

	info, err := loader.Info(ctx, data)
	if err != nil {
		s.logger.Warn("Failed to read document info", logger.Error(err))
		info = &models.DocumentInfo{}
	}
	if info.PageCount == 0 {
		info.PageCount = raster.PageCount
	}

	img, err := imgproc.Process(raster.Image, opts.MaxWidth, opts.MaxHeight, opts.Angle)
	if err != nil {
		return models.EncodedImage{}, nil, opts, asDocumentError("transform image", err)
	}

	encoded, err := imgproc.EncodeJPEG(img)
	if err != nil {
		return models.EncodedImage{}, nil, opts, asDocumentError("encode image", err)
	}
	return encoded, info, opts, nil
}

func (s *Service) removeOriginal(ctx context.Context, key string) {
	if err := s.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("Failed to remove stored original",
			logger.String("key", key),
			logger.Error(err),
		)
	}
}

func normalizeOptions(opts models.TransformOptions) models.TransformOptions {
	def := models.DefaultTransformOptions()
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = def.MaxWidth
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = def.MaxHeight
	}
	if opts.PageIndex < 0 {
		opts.PageIndex = 0
	}
	return opts
}

func asDocumentError(op string, err error) error {
	var docErr *models.DocumentError
	if errors.As(err, &docErr) {
		return err
	}
	return &models.DocumentError{Op: op, Err: err}
}
