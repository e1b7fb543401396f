package models

import "time"

// CertificateStatus 证书记录状态
type CertificateStatus string

const (
	StatusDraft     CertificateStatus = "draft"
	StatusSubmitted CertificateStatus = "submitted"
)

// CertificateRecord certificate_records 表中的一行
type CertificateRecord struct {
	ID              int64             `db:"id" json:"id"`
	StudentCollege  string            `db:"student_college" json:"studentCollege"`
	CompetitionName string            `db:"competition_name" json:"competitionName"`
	StudentID       string            `db:"student_id" json:"studentId"`
	StudentName     string            `db:"student_name" json:"studentName"`
	AwardCategory   string            `db:"award_category" json:"awardCategory"`
	AwardLevel      string            `db:"award_level" json:"awardLevel"`
	CompetitionType string            `db:"competition_type" json:"competitionType"`
	OrganizingUnit  string            `db:"organizing_unit" json:"organizingUnit"`
	AwardDate       *string           `db:"award_date" json:"awardDate"`
	AdvisorName     string            `db:"advisor_name" json:"advisorName"`
	UploadFileID    int64             `db:"upload_file_id" json:"uploadFileId"`
	UserID          int64             `db:"user_id" json:"userId"`
	Status          CertificateStatus `db:"status" json:"status"`
	CreatedAt       time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updatedAt"`
	Filename        *string           `db:"filename" json:"filename,omitempty"`
}

// IsDraft reports whether the record may still be edited.
func (r CertificateRecord) IsDraft() bool {
	return r.Status == StatusDraft
}

// Fields returns the editable field set. A NULL award date reads as "",
// meaning unknown.
func (r CertificateRecord) Fields() ExtractedFields {
	date := ""
	if r.AwardDate != nil {
		date = *r.AwardDate
	}
	return ExtractedFields{
		StudentCollege:  r.StudentCollege,
		CompetitionName: r.CompetitionName,
		StudentID:       r.StudentID,
		StudentName:     r.StudentName,
		AwardCategory:   r.AwardCategory,
		AwardLevel:      r.AwardLevel,
		CompetitionType: r.CompetitionType,
		OrganizingUnit:  r.OrganizingUnit,
		AwardDate:       date,
		AdvisorName:     r.AdvisorName,
	}
}
