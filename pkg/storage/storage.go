package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/feichai0017/certificate-processor/pkg/logger"
	"github.com/feichai0017/certificate-processor/pkg/storage/minio"
	"github.com/feichai0017/certificate-processor/pkg/storage/s3"
)

// StorageType 定义存储类型
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"

	// 仅限单进程部署，worker 无法读取
	StorageTypeMemory StorageType = "memory"
)

// KeyPrefix 证书原件的对象前缀
const KeyPrefix = "certificates/"

// Storage 接口定义
type Storage interface {
	// Store 以指定 key 存储文件，返回最终 key
	Store(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	// Get 获取文件
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除文件
	Delete(ctx context.Context, key string) error
}

// NewObjectKey returns certificates/<uuid><ext> with the extension lowercased.
func NewObjectKey(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(KeyPrefix, uuid.NewString()+ext)
}

// ReadAll fetches an object fully into memory.
func ReadAll(ctx context.Context, s Storage, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// NewStorage 创建存储实例的工厂方法
func NewStorage(storageType StorageType, log logger.Logger) (Storage, error) {
	switch storageType {
	case StorageTypeS3:
		return s3.GetClient(log)
	case StorageTypeMinio:
		return minio.GetClient(log)
	case StorageTypeMemory:
		log.Warn("Using in-memory storage, originals are lost on restart")
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
