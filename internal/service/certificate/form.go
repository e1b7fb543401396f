package certificate

import (
	"context"

	"github.com/feichai0017/certificate-processor/internal/models"
)

// Form seeds the review step: current field values, which of them the user
// may not edit, and the allowed enumeration values.
type Form struct {
	SessionID        string                 `json:"sessionId"`
	Fields           models.ExtractedFields `json:"fields"`
	Locked           map[string]bool        `json:"locked"`
	ExtractError     string                 `json:"extractError,omitempty"`
	AwardCategories  []string               `json:"awardCategories"`
	AwardLevels      []string               `json:"awardLevels"`
	CompetitionTypes []string               `json:"competitionTypes"`
}

// LockedFields 按角色锁定的字段
func LockedFields(role models.UserRole) map[string]bool {
	locked := make(map[string]bool, len(models.FieldNames))
	for _, name := range models.FieldNames {
		locked[name] = false
	}
	switch role {
	case models.RoleStudent:
		locked[models.FieldStudentID] = true
		locked[models.FieldStudentName] = true
	case models.RoleTeacher:
		locked[models.FieldAdvisorName] = true
	}
	return locked
}

// ApplyLocks overwrites the locked fields with the user's own identity.
// Admins have no locked fields.
func ApplyLocks(user models.User, fields models.ExtractedFields) models.ExtractedFields {
	switch user.Role {
	case models.RoleStudent:
		fields.StudentID = user.Username
		fields.StudentName = user.RealName
	case models.RoleTeacher:
		fields.AdvisorName = user.RealName
	}
	return fields
}

// ReviewForm builds the form for a working upload. Choices the extractor
// returned outside the option lists start out unselected.
func ReviewForm(user models.User, state models.WorkingUpload) Form {
	return Form{
		SessionID:        state.SessionID,
		Fields:           ApplyLocks(user, state.CurrentFields().WithValidChoices()),
		Locked:           LockedFields(user.Role),
		ExtractError:     state.ExtractError,
		AwardCategories:  models.AwardCategories,
		AwardLevels:      models.AwardLevels,
		CompetitionTypes: models.CompetitionTypes,
	}
}

// Form loads the session and builds its review form.
func (s *Service) Form(ctx context.Context, user models.User, sessionID string) (Form, error) {
	state, err := s.loadSession(ctx, user, sessionID)
	if err != nil {
		return Form{}, err
	}
	return ReviewForm(user, state), nil
}
