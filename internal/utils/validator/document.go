// internal/utils/validator/document.go
package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/feichai0017/certificate-processor/internal/models"
	"github.com/feichai0017/certificate-processor/pkg/logger"
)

// DocumentValidator 上传文件验证器
type DocumentValidator struct {
	logger  logger.Logger
	sniff   bool
	maxSize int64
}

// ValidationResult 验证结果
type ValidationResult struct {
	IsValid  bool                     `json:"isValid"`
	Reason   string                   `json:"reason,omitempty"`
	Errors   []models.ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo                 `json:"fileInfo"`
}

// FileInfo 文件信息
type FileInfo struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Extension string `json:"extension"`
	Hash      string `json:"hash"`
}

// NewDocumentValidator creates a validator. When sniff is set the declared
// extension must agree with the content.
func NewDocumentValidator(log logger.Logger, sniff bool) *DocumentValidator {
	return &DocumentValidator{
		logger:  log,
		sniff:   sniff,
		maxSize: MaxFileSize,
	}
}

// Validate 验证单个上传文件
func (v *DocumentValidator) Validate(file models.UploadedFile) *ValidationResult {
	result := &ValidationResult{
		IsValid: true,
		FileInfo: FileInfo{
			Filename:  file.Name,
			Size:      file.Size,
			Extension: Extension(file.Name),
		},
	}

	if ok, reason := ValidateFile(file.Name, file.Size); !ok {
		result.fail(reason, codeFor(reason), fieldFor(reason))
		v.logger.Info("Upload rejected",
			logger.String("filename", file.Name),
			logger.Int64("size", file.Size),
			logger.String("reason", reason),
		)
		return result
	}

	hash := sha256.Sum256(file.Data)
	result.FileInfo.Hash = hex.EncodeToString(hash[:])
	result.FileInfo.MimeType = detectMimeType(file.Data)

	if v.sniff && !mimeMatches(result.FileInfo.Extension, result.FileInfo.MimeType) {
		result.fail(ReasonUnsupportedType, "INVALID_MIME_TYPE", "mimeType")
		result.Errors[0].Message = fmt.Sprintf("%s: content is %s, not %s",
			ReasonUnsupportedType, result.FileInfo.MimeType, result.FileInfo.Extension)
		v.logger.Info("Upload content does not match extension",
			logger.String("filename", file.Name),
			logger.String("mimeType", result.FileInfo.MimeType),
		)
	}

	return result
}

func (r *ValidationResult) fail(reason, code, field string) {
	r.IsValid = false
	r.Reason = reason
	r.Errors = append(r.Errors, models.ValidationError{
		Code:    code,
		Message: reason,
		Field:   field,
	})
}

// Err converts a failed result into models.ValidationErrors.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return models.ValidationErrors(r.Errors)
}

func codeFor(reason string) string {
	if reason == ReasonTooLarge {
		return "FILE_TOO_LARGE"
	}
	return "INVALID_FILE_TYPE"
}

func fieldFor(reason string) string {
	if reason == ReasonTooLarge {
		return "size"
	}
	return "extension"
}

// 读取前 512 字节判断类型
func detectMimeType(data []byte) string {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return http.DetectContentType(head)
}

func mimeMatches(ext, mimeType string) bool {
	for _, m := range allowedTypes[ext] {
		if m == mimeType {
			return true
		}
	}
	return false
}
