package image

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/feichai0017/certificate-processor/internal/models"
)

// DefaultQuality JPEG 编码质量
const DefaultQuality = 95

var formatMIME = map[imaging.Format]string{
	imaging.JPEG: "image/jpeg",
	imaging.PNG:  "image/png",
	imaging.BMP:  "image/bmp",
}

// ToDataURI encodes img and wraps it as data:<mime>;base64,<payload>.
// quality only applies to JPEG; values outside 1..100 fall back to
// DefaultQuality.
func ToDataURI(img image.Image, format imaging.Format, quality int) (models.EncodedImage, error) {
	mime, ok := formatMIME[format]
	if !ok {
		return models.EncodedImage{}, fmt.Errorf("unsupported output format: %s", format)
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(quality)); err != nil {
		return models.EncodedImage{}, fmt.Errorf("failed to encode image: %w", err)
	}

	payload := base64.StdEncoding.EncodeToString(buf.Bytes())
	b := img.Bounds()
	return models.EncodedImage{
		MimeType: mime,
		Payload:  payload,
		DataURI:  "data:" + mime + ";base64," + payload,
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}

// EncodeJPEG is ToDataURI with the default format and quality.
func EncodeJPEG(img image.Image) (models.EncodedImage, error) {
	return ToDataURI(img, imaging.JPEG, DefaultQuality)
}

// SplitDataURI returns the mime type and the base64 payload of a data URI.
func SplitDataURI(uri string) (string, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", "", fmt.Errorf("not a data uri")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", fmt.Errorf("data uri has no payload")
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", "", fmt.Errorf("data uri is not base64 encoded")
	}
	return mime, payload, nil
}

// DecodeDataURI reverses ToDataURI.
func DecodeDataURI(uri string) (string, []byte, error) {
	mime, payload, err := SplitDataURI(uri)
	if err != nil {
		return "", nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data uri payload: %w", err)
	}
	return mime, raw, nil
}
