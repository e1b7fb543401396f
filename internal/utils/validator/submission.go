package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/feichai0017/certificate-processor/internal/models"
)

// SubmissionValidator enforces the rules a record must satisfy before it
// leaves draft.
type SubmissionValidator struct {
	validate *validator.Validate
}

// NewSubmissionValidator registers the certificate-specific tags.
func NewSubmissionValidator(validate *validator.Validate) *SubmissionValidator {
	if validate == nil {
		validate = validator.New()
	}
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("student_id", func(fl validator.FieldLevel) bool {
		return models.IsStudentID(fl.Field().String())
	})
	_ = validate.RegisterValidation("award_date", func(fl validator.FieldLevel) bool {
		return models.IsAwardDate(fl.Field().String())
	})
	return &SubmissionValidator{validate: validate}
}

// draftChoices 草稿也要满足的枚举约束，空值表示未选择
type draftChoices struct {
	AwardCategory   string `json:"获奖类别" validate:"omitempty,oneof=国家级 省级"`
	AwardLevel      string `json:"获奖等级" validate:"omitempty,oneof=一等奖 二等奖 三等奖 金奖 银奖 铜奖 优秀奖"`
	CompetitionType string `json:"竞赛类型" validate:"omitempty,oneof=A类 B类"`
}

// Validate returns models.ValidationErrors listing every violated rule.
func (v *SubmissionValidator) Validate(fields models.ExtractedFields) error {
	return translate(v.validate.Struct(fields))
}

// ValidateDraft only checks the enumerated fields. Drafts may be incomplete,
// but their choices must be storable.
func (v *SubmissionValidator) ValidateDraft(fields models.ExtractedFields) error {
	return translate(v.validate.Struct(draftChoices{
		AwardCategory:   fields.AwardCategory,
		AwardLevel:      fields.AwardLevel,
		CompetitionType: fields.CompetitionType,
	}))
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate fields: %w", err)
	}

	out := make(models.ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, models.ValidationError{
			Code:    strings.ToUpper(fe.Tag()),
			Message: messageFor(fe),
			Field:   fe.Field(),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s为必填字段", fe.Field())
	case "student_id":
		return "学生学号必须为13位数字"
	case "award_date":
		return "获奖时间格式必须为YYYY-MM-DD"
	case "oneof":
		return fmt.Sprintf("%s必须为以下之一：%s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", "、"))
	default:
		return fmt.Sprintf("%s不合法", fe.Field())
	}
}
