package models

import (
	"regexp"
	"time"
)

var (
	awardDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	studentIDPattern = regexp.MustCompile(`^\d{13}$`)
)

// IsAwardDate reports whether s is a YYYY-MM-DD calendar date.
func IsAwardDate(s string) bool {
	if !awardDatePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// IsStudentID 学号为 13 位数字
func IsStudentID(s string) bool {
	return studentIDPattern.MatchString(s)
}

// 证书字段名，与提取提示词中的键名一致
const (
	FieldStudentCollege  = "学生所在学院"
	FieldCompetitionName = "竞赛项目"
	FieldStudentID       = "学号"
	FieldStudentName     = "学生姓名"
	FieldAwardCategory   = "获奖类别"
	FieldAwardLevel      = "获奖等级"
	FieldCompetitionType = "竞赛类型"
	FieldOrganizingUnit  = "主办单位"
	FieldAwardDate       = "获奖时间"
	FieldAdvisorName     = "指导教师"
)

// FieldNames lists the ten recognised keys in prompt order.
var FieldNames = []string{
	FieldStudentCollege,
	FieldCompetitionName,
	FieldStudentID,
	FieldStudentName,
	FieldAwardCategory,
	FieldAwardLevel,
	FieldCompetitionType,
	FieldOrganizingUnit,
	FieldAwardDate,
	FieldAdvisorName,
}

// 枚举取值，空字符串表示未选择
var (
	AwardCategories  = []string{"", "国家级", "省级"}
	AwardLevels      = []string{"", "一等奖", "二等奖", "三等奖", "金奖", "银奖", "铜奖", "优秀奖"}
	CompetitionTypes = []string{"", "A类", "B类"}
)

// ExtractedFields 证书上的十个结构化字段。所有字段始终存在，缺失即为空字符串。
// validate 标签只在提交时生效，保存草稿不做校验。
type ExtractedFields struct {
	StudentCollege  string `json:"学生所在学院"`
	CompetitionName string `json:"竞赛项目"`
	StudentID       string `json:"学号" validate:"required,student_id"`
	StudentName     string `json:"学生姓名" validate:"required"`
	AwardCategory   string `json:"获奖类别" validate:"required,oneof=国家级 省级"`
	AwardLevel      string `json:"获奖等级" validate:"required,oneof=一等奖 二等奖 三等奖 金奖 银奖 铜奖 优秀奖"`
	CompetitionType string `json:"竞赛类型" validate:"required,oneof=A类 B类"`
	OrganizingUnit  string `json:"主办单位"`
	AwardDate       string `json:"获奖时间" validate:"omitempty,award_date"`
	AdvisorName     string `json:"指导教师" validate:"required"`
}

// FieldsFromMap converts a string map into the fixed field set. Unknown keys
// are ignored, missing keys become "".
func FieldsFromMap(m map[string]string) ExtractedFields {
	return ExtractedFields{
		StudentCollege:  m[FieldStudentCollege],
		CompetitionName: m[FieldCompetitionName],
		StudentID:       m[FieldStudentID],
		StudentName:     m[FieldStudentName],
		AwardCategory:   m[FieldAwardCategory],
		AwardLevel:      m[FieldAwardLevel],
		CompetitionType: m[FieldCompetitionType],
		OrganizingUnit:  m[FieldOrganizingUnit],
		AwardDate:       m[FieldAwardDate],
		AdvisorName:     m[FieldAdvisorName],
	}
}

// Map returns all ten keys.
func (f ExtractedFields) Map() map[string]string {
	return map[string]string{
		FieldStudentCollege:  f.StudentCollege,
		FieldCompetitionName: f.CompetitionName,
		FieldStudentID:       f.StudentID,
		FieldStudentName:     f.StudentName,
		FieldAwardCategory:   f.AwardCategory,
		FieldAwardLevel:      f.AwardLevel,
		FieldCompetitionType: f.CompetitionType,
		FieldOrganizingUnit:  f.OrganizingUnit,
		FieldAwardDate:       f.AwardDate,
		FieldAdvisorName:     f.AdvisorName,
	}
}

// IsEmpty 所有字段均为空
func (f ExtractedFields) IsEmpty() bool {
	return f == ExtractedFields{}
}

// Contains reports whether v is one of the allowed options.
func Contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

// WithValidChoices resets enumerated fields holding a value outside their
// option list to "", so the form starts from a selectable value.
func (f ExtractedFields) WithValidChoices() ExtractedFields {
	if !Contains(AwardCategories, f.AwardCategory) {
		f.AwardCategory = ""
	}
	if !Contains(AwardLevels, f.AwardLevel) {
		f.AwardLevel = ""
	}
	if !Contains(CompetitionTypes, f.CompetitionType) {
		f.CompetitionType = ""
	}
	return f
}
