package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"

	"github.com/feichai0017/certificate-processor/internal/models"
	"github.com/feichai0017/certificate-processor/pkg/logger"
)

// RenderDPI 固定渲染分辨率，字段提取的准确率依赖一致的输入分辨率
const RenderDPI = 300

// Rasterizer renders PDF pages and reads document metadata.
type Rasterizer struct {
	logger logger.Logger
}

func NewRasterizer(log logger.Logger) *Rasterizer {
	return &Rasterizer{logger: log}
}

func (r *Rasterizer) CanLoad(mimeType string) bool {
	return mimeType == "application/pdf"
}

func (r *Rasterizer) Load(ctx context.Context, data []byte, pageIndex int) (*models.RasterDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.RenderPageFromBytes(data, pageIndex)
}

func (r *Rasterizer) Info(ctx context.Context, data []byte) (*models.DocumentInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := r.ExtractInfoFromBytes(data)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ExtractInfo 读取文件路径指向的 PDF 元数据
func (r *Rasterizer) ExtractInfo(path string) (models.DocumentInfo, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return models.DocumentInfo{}, &models.DocumentError{Op: "open pdf", Err: err}
	}
	defer f.Close()

	return infoFromReader(reader), nil
}

// ExtractInfoFromBytes 读取内存中的 PDF 元数据
func (r *Rasterizer) ExtractInfoFromBytes(data []byte) (info models.DocumentInfo, err error) {
	// ledongthuc/pdf panics on some truncated xref tables
	defer func() {
		if p := recover(); p != nil {
			err = &models.DocumentError{Op: "read pdf", Err: fmt.Errorf("%v", p)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return models.DocumentInfo{}, &models.DocumentError{Op: "read pdf", Err: err}
	}
	return infoFromReader(reader), nil
}

func infoFromReader(reader *pdf.Reader) models.DocumentInfo {
	info := models.DocumentInfo{PageCount: reader.NumPage()}

	dict := reader.Trailer().Key("Info")
	if dict.IsNull() {
		return info
	}
	info.Title = dict.Key("Title").Text()
	info.Author = dict.Key("Author").Text()
	info.Subject = dict.Key("Subject").Text()
	info.Creator = dict.Key("Creator").Text()
	info.Producer = dict.Key("Producer").Text()
	info.CreatedAt = dict.Key("CreationDate").RawString()
	info.ModifiedAt = dict.Key("ModDate").RawString()
	return info
}

// RenderPage 渲染文件中的一页
func (r *Rasterizer) RenderPage(path string, pageIndex int) (*models.RasterDocument, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, &models.DocumentError{Op: "open pdf", Err: err}
	}
	defer doc.Close()

	return r.render(doc, pageIndex)
}

// RenderPageFromBytes 渲染内存中 PDF 的一页
func (r *Rasterizer) RenderPageFromBytes(data []byte, pageIndex int) (*models.RasterDocument, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, &models.DocumentError{Op: "open pdf", Err: err}
	}
	defer doc.Close()

	return r.render(doc, pageIndex)
}

func (r *Rasterizer) render(doc *fitz.Document, pageIndex int) (*models.RasterDocument, error) {
	pageCount := doc.NumPage()
	if pageCount <= 0 {
		return nil, &models.DocumentError{Op: "render page", Err: fmt.Errorf("document has no pages")}
	}

	page := ClampPage(pageIndex, pageCount)
	if page != pageIndex {
		r.logger.Debug("Page index out of range, using first page",
			logger.Int("requested", pageIndex),
			logger.Int("pageCount", pageCount),
		)
	}

	img, err := doc.ImageDPI(page, RenderDPI)
	if err != nil {
		return nil, &models.DocumentError{Op: fmt.Sprintf("render page %d", page), Err: err}
	}

	return models.NewRasterDocument(image.Image(img), page, pageCount), nil
}

// ClampPage maps any index outside [0, pageCount) to 0.
func ClampPage(pageIndex, pageCount int) int {
	if pageIndex < 0 || pageIndex >= pageCount {
		return 0
	}
	return pageIndex
}
