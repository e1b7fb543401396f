package agent

import (
	"fmt"
	"strings"

	"github.com/feichai0017/certificate-processor/internal/agent/document"
	"github.com/feichai0017/certificate-processor/internal/agent/document/image"
	"github.com/feichai0017/certificate-processor/internal/agent/document/pdf"
	"github.com/feichai0017/certificate-processor/pkg/logger"
)

// 扩展名到 MIME 类型的映射
var extToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".bmp":  "image/bmp",
	".pdf":  "application/pdf",
}

// LoaderFactory picks the loader for an upload by its extension.
type LoaderFactory struct {
	loaders map[string]document.Loader
	logger  logger.Logger
}

func NewLoaderFactory(log logger.Logger) *LoaderFactory {
	factory := &LoaderFactory{
		loaders: make(map[string]document.Loader),
		logger:  log,
	}

	factory.loaders["application/pdf"] = pdf.NewRasterizer(log.Named("pdf"))

	decoder := image.NewDecoder(log.Named("image"))
	for _, mime := range []string{"image/jpeg", "image/png", "image/bmp"} {
		factory.loaders[mime] = decoder
	}

	return factory
}

// MIMEType maps an extension to its MIME type.
func MIMEType(ext string) (string, bool) {
	mime, ok := extToMIME[strings.ToLower(ext)]
	return mime, ok
}

func (f *LoaderFactory) GetLoader(ext string) (document.Loader, error) {
	mimeType, ok := MIMEType(ext)
	if !ok {
		f.logger.Error("Unsupported file type",
			logger.String("fileType", ext),
		)
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}

	loader, ok := f.loaders[mimeType]
	if !ok || !loader.CanLoad(mimeType) {
		f.logger.Error("No loader found",
			logger.String("mimeType", mimeType),
		)
		return nil, fmt.Errorf("no loader found for mime type: %s", mimeType)
	}

	return loader, nil
}
