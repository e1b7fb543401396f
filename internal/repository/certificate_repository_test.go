package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/certificate-processor/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sampleFields() models.ExtractedFields {
	return models.ExtractedFields{
		StudentCollege:  "计算机学院",
		CompetitionName: "蓝桥杯",
		StudentID:       "2021123456789",
		StudentName:     "张三",
		AwardCategory:   "省级",
		AwardLevel:      "二等奖",
		CompetitionType: "B类",
		OrganizingUnit:  "工信部",
		AwardDate:       "2024-04-20",
		AdvisorName:     "李四",
	}
}

var recordColumns = []string{"id", "student_college", "competition_name", "student_id", "student_name",
	"award_category", "award_level", "competition_type", "organizing_unit", "award_date",
	"advisor_name", "upload_file_id", "user_id", "status", "created_at", "updated_at", "filename"}

func TestNormalizeAwardDate(t *testing.T) {
	assert.Nil(t, NormalizeAwardDate(""))
	assert.Nil(t, NormalizeAwardDate("2024/04/20"))
	assert.Nil(t, NormalizeAwardDate("20240420"))
	assert.Nil(t, NormalizeAwardDate("2024-02-30"))
	got := NormalizeAwardDate("2024-04-20")
	require.NotNil(t, got)
	assert.Equal(t, "2024-04-20", *got)
}

func TestCertificateRepositoryCreateDraft(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)
	f := sampleFields()

	mock.ExpectQuery("INSERT INTO certificate_records").
		WithArgs(f.StudentCollege, f.CompetitionName, f.StudentID, f.StudentName, f.AwardCategory, f.AwardLevel,
			f.CompetitionType, f.OrganizingUnit, "2024-04-20", f.AdvisorName, int64(7), int64(3), models.StatusDraft).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	id, err := repo.CreateDraft(context.Background(), f, 7, 3)

	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryCreateDraftCoercesBadDateToNull(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)
	f := sampleFields()
	f.AwardDate = "2024年4月"

	mock.ExpectQuery("INSERT INTO certificate_records").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))

	_, err := repo.CreateDraft(context.Background(), f, 7, 3)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryUpdateDraftIsConditional(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'draft'")).
		WithArgs(int64(5), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateDraft(context.Background(), 5, sampleFields())

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryUpdateSubmittedRecordMatchesNothing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	// one statement only: no read-then-write
	mock.ExpectExec(regexp.QuoteMeta("UPDATE certificate_records SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateDraft(context.Background(), 5, sampleFields())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositorySubmit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE certificate_records SET status = 'submitted', updated_at = NOW() WHERE id = $1 AND status = 'draft'")).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE certificate_records SET status = 'submitted'")).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Submit(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Submit(context.Background(), 9)
	require.NoError(t, err)
	assert.False(t, ok, "second submit finds no draft")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryWrapsDriverErrors(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectExec("UPDATE certificate_records").WillReturnError(errors.New("connection reset"))

	_, err := repo.Submit(context.Background(), 1)

	var perr *models.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "submit certificate", perr.Op)
}

func TestCertificateRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE cr.id = $1")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow(4, "计算机学院", "蓝桥杯", "2021123456789", "张三", "省级", "二等奖", "B类", "工信部", nil, "李四", 7, 3, "draft", now, now, "cert.pdf"))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE cr.id = $1")).
		WithArgs(int64(5)).
		WillReturnError(sql.ErrNoRows)

	record, err := repo.GetByID(context.Background(), 4)
	require.NoError(t, err)
	assert.Nil(t, record.AwardDate)
	assert.Equal(t, "", record.Fields().AwardDate)
	assert.True(t, record.IsDraft())
	require.NotNil(t, record.Filename)
	assert.Equal(t, "cert.pdf", *record.Filename)

	_, err = repo.GetByID(context.Background(), 5)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryListForUserScopesByRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)
	now := time.Now()
	row := func() *sqlmock.Rows {
		return sqlmock.NewRows(recordColumns).
			AddRow(1, "", "", "2021123456789", "张三", "", "", "", "", "2024-04-20", "李四", 0, 3, "submitted", now, now, nil)
	}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE cr.student_id = $1 ORDER BY cr.id DESC")).
		WithArgs("2021123456789").WillReturnRows(row())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE cr.advisor_name = $1 ORDER BY cr.id DESC")).
		WithArgs("李四").WillReturnRows(row())
	mock.ExpectQuery(regexp.QuoteMeta("fu.id  ORDER BY cr.id DESC")).
		WillReturnRows(row())

	student := models.User{ID: 3, Username: "2021123456789", RealName: "张三", Role: models.RoleStudent}
	teacher := models.User{ID: 8, Username: "20010001", RealName: "李四", Role: models.RoleTeacher}
	admin := models.User{ID: 1, Username: "00000001", RealName: "管理员", Role: models.RoleAdmin}

	for _, u := range []models.User{student, teacher, admin} {
		records, err := repo.ListForUser(context.Background(), u)
		require.NoError(t, err, u.Role)
		require.Len(t, records, 1)
		require.NotNil(t, records[0].AwardDate)
		assert.Equal(t, "2024-04-20", *records[0].AwardDate)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryListAllFiltersByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE cr.status = $1")).
		WithArgs(models.StatusSubmitted).
		WillReturnRows(sqlmock.NewRows(recordColumns))

	records, err := repo.ListAll(context.Background(), models.StatusSubmitted)

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}
