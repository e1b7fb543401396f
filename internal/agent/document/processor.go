package document

import (
	"context"

	"github.com/feichai0017/certificate-processor/internal/models"
)

// Loader 把上传的原始字节转换为位图
type Loader interface {
	// CanLoad 检查是否可以处理指定MIME类型的文件
	CanLoad(mimeType string) bool

	// Load 解码指定页，越界页码按第一页处理
	Load(ctx context.Context, data []byte, pageIndex int) (*models.RasterDocument, error)

	// Info 提取文档元数据
	Info(ctx context.Context, data []byte) (*models.DocumentInfo, error)
}
