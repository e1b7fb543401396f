package converters

import (
	"fmt"
	"time"

	"github.com/feichai0017/certificate-processor/internal/models"
)

// RecordConverter 定义记录导出转换器接口
type RecordConverter interface {
	Convert(records []models.CertificateRecord) (*RecordExport, error)
}

// RecordExport is the full field set of a batch of records, in column order.
type RecordExport struct {
	Columns     []string         `json:"columns"`
	Records     []ExportedRecord `json:"records"`
	Count       int              `json:"count"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// ExportedRecord 单条记录
type ExportedRecord struct {
	ID        int64                    `json:"id"`
	Status    models.CertificateStatus `json:"status"`
	Filename  string                   `json:"filename,omitempty"`
	Fields    map[string]string        `json:"fields"`
	Row       []string                 `json:"row"`
	CreatedAt time.Time                `json:"createdAt"`
	UpdatedAt time.Time                `json:"updatedAt"`
}

// JSONConverter 实现记录转换器
type JSONConverter struct{}

func NewJSONConverter() *JSONConverter {
	return &JSONConverter{}
}

// Columns 导出列顺序
func Columns() []string {
	cols := make([]string, len(models.FieldNames))
	copy(cols, models.FieldNames)
	return cols
}

// ExportRecord returns every field of a record. A NULL award date is "".
func ExportRecord(rec models.CertificateRecord) ExportedRecord {
	fields := rec.Fields().Map()
	row := make([]string, 0, len(models.FieldNames))
	for _, name := range models.FieldNames {
		row = append(row, fields[name])
	}

	out := ExportedRecord{
		ID:        rec.ID,
		Status:    rec.Status,
		Fields:    fields,
		Row:       row,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.Filename != nil {
		out.Filename = *rec.Filename
	}
	return out
}

func (c *JSONConverter) Convert(records []models.CertificateRecord) (*RecordExport, error) {
	export := &RecordExport{
		Columns:     Columns(),
		Records:     make([]ExportedRecord, 0, len(records)),
		GeneratedAt: time.Now(),
	}

	for _, rec := range records {
		if rec.ID == 0 {
			return nil, fmt.Errorf("record without id cannot be exported")
		}
		export.Records = append(export.Records, ExportRecord(rec))
	}
	export.Count = len(export.Records)

	return export, nil
}
