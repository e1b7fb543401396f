package image

import (
	"bytes"
	"context"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/feichai0017/certificate-processor/internal/models"
	"github.com/feichai0017/certificate-processor/pkg/logger"
)

// Decoder 直接解码 jpg/png/bmp 图片
type Decoder struct {
	logger logger.Logger
}

func NewDecoder(log logger.Logger) *Decoder {
	return &Decoder{logger: log}
}

func (d *Decoder) CanLoad(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/jpg", "image/png", "image/bmp":
		return true
	}
	return false
}

// Load decodes a single-page image. pageIndex is ignored.
func (d *Decoder) Load(ctx context.Context, data []byte, _ int) (*models.RasterDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("Image decoded",
		logger.Int("width", img.Bounds().Dx()),
		logger.Int("height", img.Bounds().Dy()),
	)
	return models.NewRasterDocument(img, 0, 1), nil
}

func (d *Decoder) Info(ctx context.Context, data []byte) (*models.DocumentInfo, error) {
	return &models.DocumentInfo{PageCount: 1}, nil
}

// Decode reads any registered format and flattens transparency onto white.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &models.DocumentError{Op: "decode image", Err: err}
	}
	return Flatten(img), nil
}

// Flatten composites img over an opaque white canvas of the same size.
func Flatten(img image.Image) image.Image {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
