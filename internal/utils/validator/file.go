package validator

import (
	"path/filepath"
	"strings"
)

// MaxFileSize 上传文件大小上限 10 MiB
const MaxFileSize int64 = 10 * 1024 * 1024

const (
	ReasonUnsupportedType = "unsupported file type"
	ReasonTooLarge        = "file too large"
)

// 允许的扩展名及其 MIME 类型
var allowedTypes = map[string][]string{
	".pdf":  {"application/pdf"},
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".png":  {"image/png"},
	".bmp":  {"image/bmp", "image/x-ms-bmp"},
}

// ValidateFile checks the extension policy first and the size cap second.
func ValidateFile(name string, size int64) (bool, string) {
	if !IsAllowedExtension(name) {
		return false, ReasonUnsupportedType
	}
	if size > MaxFileSize {
		return false, ReasonTooLarge
	}
	return true, ""
}

// IsAllowedExtension 扩展名不区分大小写
func IsAllowedExtension(name string) bool {
	_, ok := allowedTypes[Extension(name)]
	return ok
}

// Extension returns the lower-cased extension including the dot.
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
