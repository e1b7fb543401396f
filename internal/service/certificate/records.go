package certificate

import (
	"context"
	"fmt"

	"github.com/feichai0017/certificate-processor/internal/models"
	"github.com/feichai0017/certificate-processor/pkg/converters"
	"github.com/feichai0017/certificate-processor/pkg/logger"
)

// SaveDraft persists the form verbatim as a draft. The first save creates
// the record; later saves update it while it is still a draft. Only the
// enumerated fields are checked, nothing is required.
func (s *Service) SaveDraft(ctx context.Context, user models.User, sessionID string, fields models.ExtractedFields) (models.WorkingUpload, error) {
	state, err := s.loadSession(ctx, user, sessionID)
	if err != nil {
		return models.WorkingUpload{}, err
	}

	fields = ApplyLocks(user, fields)
	if err := s.fields.ValidateDraft(fields); err != nil {
		return models.WorkingUpload{}, err
	}
	next, err := s.persist(ctx, user, state, fields)
	if err != nil {
		return models.WorkingUpload{}, err
	}

	s.audit(ctx, user, "save_certificate", fmt.Sprintf("保存证书草稿: %d", next.RecordID))
	return next, nil
}

// Submit validates every rule, saves the fields and moves the record to
// submitted. On validation failure nothing is written and all violations
// are returned. A failed submit leaves a draft the session already points
// at, so retrying does not create a second record.
func (s *Service) Submit(ctx context.Context, user models.User, sessionID string, fields models.ExtractedFields) (models.WorkingUpload, error) {
	state, err := s.loadSession(ctx, user, sessionID)
	if err != nil {
		return models.WorkingUpload{}, err
	}

	fields = ApplyLocks(user, fields)
	if err := s.fields.Validate(fields); err != nil {
		s.metrics.ObserveSubmission("invalid")
		return models.WorkingUpload{}, err
	}

	saved, err := s.persist(ctx, user, state, fields)
	if err != nil {
		s.metrics.ObserveSubmission("failed")
		return models.WorkingUpload{}, err
	}
	id := saved.RecordID
	if err := s.submit(ctx, id); err != nil {
		s.metrics.ObserveSubmission("failed")
		return models.WorkingUpload{}, err
	}

	next, _, err := s.sessions.Update(ctx, sessionID, func(cur models.WorkingUpload) (models.WorkingUpload, error) {
		return cur.WithRecord(id, models.StageSubmitted, fields), nil
	})
	if err != nil {
		return models.WorkingUpload{}, err
	}

	s.metrics.ObserveSubmission("submitted")
	s.audit(ctx, user, "submit_certificate", fmt.Sprintf("提交证书: %d", id))
	return next, nil
}

// persist creates the record on first save and updates the draft afterwards.
// The record id is written to the session as soon as the row exists.
func (s *Service) persist(ctx context.Context, user models.User, state models.WorkingUpload, fields models.ExtractedFields) (models.WorkingUpload, error) {
	id := state.RecordID
	if id == 0 {
		created, err := s.records.CreateDraft(ctx, fields, state.UploadFileID, user.ID)
		if err != nil {
			logger.FromContext(ctx, s.logger).Error("Failed to create certificate record",
				logger.String("sessionId", state.SessionID),
				logger.Error(err),
			)
			return models.WorkingUpload{}, err
		}
		id = created
	} else {
		ok, err := s.records.UpdateDraft(ctx, id, fields)
		if err != nil {
			logger.FromContext(ctx, s.logger).Error("Failed to update certificate record",
				logger.Int64("recordId", id),
				logger.Error(err),
			)
			return models.WorkingUpload{}, err
		}
		if !ok {
			return models.WorkingUpload{}, models.ErrNotDraft
		}
	}

	next, _, err := s.sessions.Update(ctx, state.SessionID, func(cur models.WorkingUpload) (models.WorkingUpload, error) {
		return cur.WithRecord(id, models.StageSaved, fields), nil
	})
	if err != nil {
		logger.FromContext(ctx, s.logger).Error("Failed to remember certificate record",
			logger.String("sessionId", state.SessionID),
			logger.Int64("recordId", id),
			logger.Error(err),
		)
		return models.WorkingUpload{}, err
	}
	return next, nil
}

func (s *Service) submit(ctx context.Context, id int64) error {
	ok, err := s.records.Submit(ctx, id)
	if err != nil {
		logger.FromContext(ctx, s.logger).Error("Failed to submit certificate record",
			logger.Int64("recordId", id),
			logger.Error(err),
		)
		return err
	}
	if !ok {
		return models.ErrNotDraft
	}
	return nil
}

// CanAccess reports whether user may view or change rec: admins, the owner,
// the student the record names, or its advisor.
func CanAccess(user models.User, rec models.CertificateRecord) bool {
	switch {
	case user.Role == models.RoleAdmin:
		return true
	case rec.UserID == user.ID:
		return true
	case user.Role == models.RoleStudent && rec.StudentID == user.Username:
		return true
	case user.Role == models.RoleTeacher && rec.AdvisorName == user.RealName:
		return true
	}
	return false
}

// GetRecord 查询单条记录并校验权限
func (s *Service) GetRecord(ctx context.Context, user models.User, id int64) (*models.CertificateRecord, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanAccess(user, *rec) {
		return nil, models.ErrForbidden
	}
	return rec, nil
}

// ListRecords returns the records visible to user. The status filter is
// optional.
func (s *Service) ListRecords(ctx context.Context, user models.User, status models.CertificateStatus) ([]models.CertificateRecord, error) {
	if user.Role == models.RoleAdmin {
		return s.records.ListAll(ctx, status)
	}

	records, err := s.records.ListForUser(ctx, user)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return records, nil
	}
	filtered := make([]models.CertificateRecord, 0, len(records))
	for _, rec := range records {
		if rec.Status == status {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// UpdateRecord changes the fields of a listed draft record.
func (s *Service) UpdateRecord(ctx context.Context, user models.User, id int64, fields models.ExtractedFields) (*models.CertificateRecord, error) {
	if _, err := s.GetRecord(ctx, user, id); err != nil {
		return nil, err
	}

	fields = ApplyLocks(user, fields)
	if err := s.fields.ValidateDraft(fields); err != nil {
		return nil, err
	}
	ok, err := s.records.UpdateDraft(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrNotDraft
	}

	s.audit(ctx, user, "update_certificate", fmt.Sprintf("修改证书: %d", id))
	return s.records.GetByID(ctx, id)
}

// SubmitRecord submits a listed draft after validating its stored fields.
func (s *Service) SubmitRecord(ctx context.Context, user models.User, id int64) (*models.CertificateRecord, error) {
	rec, err := s.GetRecord(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if !rec.IsDraft() {
		return nil, models.ErrNotDraft
	}
	if err := s.fields.Validate(rec.Fields()); err != nil {
		s.metrics.ObserveSubmission("invalid")
		return nil, err
	}
	if err := s.submit(ctx, id); err != nil {
		s.metrics.ObserveSubmission("failed")
		return nil, err
	}

	s.metrics.ObserveSubmission("submitted")
	s.audit(ctx, user, "submit_certificate", fmt.Sprintf("提交证书: %d", id))
	return s.records.GetByID(ctx, id)
}

// RecordFields is the read accessor used by exports: every field of the
// record, NULL award date as "".
func RecordFields(rec models.CertificateRecord) map[string]string {
	return converters.ExportRecord(rec).Fields
}

// ExportRecords converts the records visible to user for export.
func (s *Service) ExportRecords(ctx context.Context, user models.User, status models.CertificateStatus) (*converters.RecordExport, error) {
	records, err := s.ListRecords(ctx, user, status)
	if err != nil {
		return nil, err
	}
	return s.converter.Convert(records)
}
