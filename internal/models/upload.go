package models

import "time"

// UploadStage 上传流程所处阶段
type UploadStage string

const (
	StageTransformed UploadStage = "transformed"
	StageExtracted   UploadStage = "extracted"
	StageSaved       UploadStage = "saved"
	StageSubmitted   UploadStage = "submitted"
)

// TransformOptions 旋转和缩放参数
type TransformOptions struct {
	PageIndex int     `json:"pageIndex"`
	MaxWidth  int     `json:"maxWidth"`
	MaxHeight int     `json:"maxHeight"`
	Angle     float64 `json:"angle"`
}

// DefaultTransformOptions first page, 800x1200 box, no rotation.
func DefaultTransformOptions() TransformOptions {
	return TransformOptions{PageIndex: 0, MaxWidth: 800, MaxHeight: 1200, Angle: 0}
}

// WorkingUpload is the per-session state of one certificate flow. Values are
// never mutated in place; every transition produces a new value through the
// With* methods.
type WorkingUpload struct {
	SessionID    string           `json:"sessionId"`
	UserID       int64            `json:"userId"`
	Stage        UploadStage      `json:"stage"`
	Original     UploadedFile     `json:"original"`
	ObjectKey    string           `json:"objectKey"`
	UploadFileID int64            `json:"uploadFileId"`
	Info         *DocumentInfo    `json:"info,omitempty"`
	Options      TransformOptions `json:"options"`
	Image        EncodedImage     `json:"image"`
	Fingerprint  string           `json:"fingerprint"`
	Fields       *ExtractedFields `json:"fields,omitempty"`
	ExtractError string           `json:"extractError,omitempty"`
	RecordID     int64            `json:"recordId,omitempty"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// WithImage replaces the working image. The page selection and transform
// options travel with it; previously extracted fields are kept.
func (w WorkingUpload) WithImage(img EncodedImage, opts TransformOptions) WorkingUpload {
	w.Image = img
	w.Fingerprint = img.Fingerprint()
	w.Options = opts
	if w.Stage == "" {
		w.Stage = StageTransformed
	}
	w.UpdatedAt = time.Now()
	return w
}

// WithExtraction records an extraction outcome. A failed extraction leaves an
// all-empty field set plus the failure cause.
func (w WorkingUpload) WithExtraction(fields ExtractedFields, cause string) WorkingUpload {
	f := fields
	w.Fields = &f
	w.ExtractError = cause
	if w.Stage == StageTransformed {
		w.Stage = StageExtracted
	}
	w.UpdatedAt = time.Now()
	return w
}

// WithRecord remembers the persisted record and the stage reached.
func (w WorkingUpload) WithRecord(id int64, stage UploadStage, fields ExtractedFields) WorkingUpload {
	f := fields
	w.Fields = &f
	w.RecordID = id
	w.Stage = stage
	w.UpdatedAt = time.Now()
	return w
}

// CurrentFields returns the extracted or previously saved fields, or the
// empty default when nothing has been extracted yet.
func (w WorkingUpload) CurrentFields() ExtractedFields {
	if w.Fields == nil {
		return ExtractedFields{}
	}
	return *w.Fields
}
