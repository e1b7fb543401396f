package models

import (
	"crypto/sha256"
	"encoding/hex"
	"image"
	"time"
)

// FileType 文件类型
type FileType string

const (
	PDF   FileType = "pdf"
	Image FileType = "image"
)

// UploadedFile 上传的原始文件，只在请求内存活
type UploadedFile struct {
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Size      int64  `json:"size"`
	Data      []byte `json:"-"`
}

// FileType 根据扩展名判断文件类别
func (f UploadedFile) FileType() FileType {
	if f.Extension == ".pdf" {
		return PDF
	}
	return Image
}

// DocumentInfo PDF 文档元数据
type DocumentInfo struct {
	PageCount  int    `json:"pageCount"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Subject    string `json:"subject"`
	Creator    string `json:"creator"`
	Producer   string `json:"producer"`
	CreatedAt  string `json:"createdAt"`
	ModifiedAt string `json:"modifiedAt"`
}

// RasterDocument 解码后的单页位图
type RasterDocument struct {
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	Image     image.Image `json:"-"`
	PageIndex int         `json:"pageIndex"`
	PageCount int         `json:"pageCount"`
}

// NewRasterDocument wraps a decoded image as a single-page raster.
func NewRasterDocument(img image.Image, pageIndex, pageCount int) *RasterDocument {
	b := img.Bounds()
	return &RasterDocument{
		Width:     b.Dx(),
		Height:    b.Dy(),
		Image:     img,
		PageIndex: pageIndex,
		PageCount: pageCount,
	}
}

// EncodedImage 编码后的图片，生成后不可变
type EncodedImage struct {
	MimeType string `json:"mimeType"`
	Payload  string `json:"-"`
	DataURI  string `json:"dataUri"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Fingerprint identifies the encoded image; extraction results carry it so
// that results for a replaced image can be recognised.
func (e EncodedImage) Fingerprint() string {
	if e.DataURI == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(e.DataURI))
	return hex.EncodeToString(sum[:])
}

// UploadedFileRecord files_uploads 表中的一行
type UploadedFileRecord struct {
	ID         int64     `db:"id" json:"id"`
	Filename   string    `db:"filename" json:"filename"`
	FilePath   string    `db:"file_path" json:"filePath"`
	FileType   string    `db:"file_type" json:"fileType"`
	FileSize   int64     `db:"file_size" json:"fileSize"`
	UserID     int64     `db:"user_id" json:"userId"`
	UploadTime time.Time `db:"upload_time" json:"uploadTime"`
}
