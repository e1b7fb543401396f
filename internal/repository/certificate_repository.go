package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/feichai0017/certificate-processor/internal/models"
)

const certificateColumns = `cr.id, cr.student_college, cr.competition_name, cr.student_id, cr.student_name,
cr.award_category, cr.award_level, cr.competition_type, cr.organizing_unit, TO_CHAR(cr.award_date, 'YYYY-MM-DD') AS award_date,
cr.advisor_name, COALESCE(cr.upload_file_id, 0) AS upload_file_id, cr.user_id, cr.status, cr.created_at, cr.updated_at, fu.filename`

const certificateFrom = `FROM certificate_records cr LEFT JOIN files_uploads fu ON cr.upload_file_id = fu.id`

// CertificateRepository is the record store. Every mutation of an existing
// record is a single conditional statement guarded by status = 'draft'.
type CertificateRepository struct {
	db *sqlx.DB
}

func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// NormalizeAwardDate returns nil for empty or malformed dates. Callers must
// read a NULL award_date as unknown, never as invalid.
func NormalizeAwardDate(s string) *string {
	if s == "" || !models.IsAwardDate(s) {
		return nil
	}
	return &s
}

// CreateDraft inserts a new draft. Existing drafts for the same upload are
// not checked.
func (r *CertificateRepository) CreateDraft(ctx context.Context, fields models.ExtractedFields, uploadFileID, ownerID int64) (int64, error) {
	const query = `INSERT INTO certificate_records (
student_college, competition_name, student_id, student_name, award_category, award_level,
competition_type, organizing_unit, award_date, advisor_name, upload_file_id, user_id, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`

	var uploadRef interface{}
	if uploadFileID > 0 {
		uploadRef = uploadFileID
	}

	var id int64
	err := r.db.QueryRowxContext(ctx, query,
		fields.StudentCollege, fields.CompetitionName, fields.StudentID, fields.StudentName,
		fields.AwardCategory, fields.AwardLevel, fields.CompetitionType, fields.OrganizingUnit,
		NormalizeAwardDate(fields.AwardDate), fields.AdvisorName, uploadRef, ownerID, models.StatusDraft,
	).Scan(&id)
	if err != nil {
		return 0, &models.PersistenceError{Op: "create certificate", Err: err}
	}
	return id, nil
}

// UpdateDraft overwrites the fields of a draft. It reports false when no row
// matched, which covers both a missing record and a submitted one.
func (r *CertificateRepository) UpdateDraft(ctx context.Context, id int64, fields models.ExtractedFields) (bool, error) {
	const query = `UPDATE certificate_records SET
student_college = $2, competition_name = $3, student_id = $4, student_name = $5,
award_category = $6, award_level = $7, competition_type = $8, organizing_unit = $9,
award_date = $10, advisor_name = $11, updated_at = NOW()
WHERE id = $1 AND status = 'draft'`

	res, err := r.db.ExecContext(ctx, query, id,
		fields.StudentCollege, fields.CompetitionName, fields.StudentID, fields.StudentName,
		fields.AwardCategory, fields.AwardLevel, fields.CompetitionType, fields.OrganizingUnit,
		NormalizeAwardDate(fields.AwardDate), fields.AdvisorName,
	)
	if err != nil {
		return false, &models.PersistenceError{Op: "update certificate", Err: err}
	}
	return affected(res, "update certificate")
}

// Submit moves a draft to submitted. false means nothing matched.
func (r *CertificateRepository) Submit(ctx context.Context, id int64) (bool, error) {
	const query = `UPDATE certificate_records SET status = 'submitted', updated_at = NOW() WHERE id = $1 AND status = 'draft'`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, &models.PersistenceError{Op: "submit certificate", Err: err}
	}
	return affected(res, "submit certificate")
}

func (r *CertificateRepository) GetByID(ctx context.Context, id int64) (*models.CertificateRecord, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE cr.id = $1", certificateColumns, certificateFrom)
	var record models.CertificateRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, &models.PersistenceError{Op: "get certificate", Err: err}
	}
	return &record, nil
}

// ListForUser scopes records by role: students see records carrying their
// student id, teachers those naming them as advisor, admins everything.
func (r *CertificateRepository) ListForUser(ctx context.Context, user models.User) ([]models.CertificateRecord, error) {
	switch user.Role {
	case models.RoleStudent:
		return r.list(ctx, "WHERE cr.student_id = $1", user.Username)
	case models.RoleTeacher:
		return r.list(ctx, "WHERE cr.advisor_name = $1", user.RealName)
	case models.RoleAdmin:
		return r.list(ctx, "")
	default:
		return nil, fmt.Errorf("unknown role %q", user.Role)
	}
}

// ListAll returns every record, optionally filtered by status.
func (r *CertificateRepository) ListAll(ctx context.Context, status models.CertificateStatus) ([]models.CertificateRecord, error) {
	if status == "" {
		return r.list(ctx, "")
	}
	return r.list(ctx, "WHERE cr.status = $1", status)
}

func (r *CertificateRepository) list(ctx context.Context, where string, args ...interface{}) ([]models.CertificateRecord, error) {
	query := fmt.Sprintf("SELECT %s %s %s ORDER BY cr.id DESC", certificateColumns, certificateFrom, where)
	records := make([]models.CertificateRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, &models.PersistenceError{Op: "list certificates", Err: err}
	}
	return records, nil
}

func affected(res sql.Result, op string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, &models.PersistenceError{Op: op, Err: err}
	}
	return n > 0, nil
}
