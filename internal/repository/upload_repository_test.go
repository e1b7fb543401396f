package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/certificate-processor/internal/models"
)

func TestUploadRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUploadRepository(db)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO files_uploads").
		WithArgs("cert.pdf", "certificates/abc.pdf", "pdf", int64(2048), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "upload_time"}).AddRow(21, now))

	file := &models.UploadedFileRecord{Filename: "cert.pdf", FilePath: "certificates/abc.pdf", FileType: "pdf", FileSize: 2048, UserID: 3}
	id, err := repo.Create(context.Background(), file)

	require.NoError(t, err)
	assert.Equal(t, int64(21), id)
	assert.Equal(t, int64(21), file.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUploadRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM files_uploads WHERE id = $1")).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99)

	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "real_name", "role", "unit", "is_active"}).
			AddRow(3, "2021123456789", "张三", "student", "计算机学院", true))
	mock.ExpectExec("INSERT INTO user_logs").
		WithArgs(int64(3), "submit", "record 4", "127.0.0.1", "curl").
		WillReturnResult(sqlmock.NewResult(1, 1))

	user, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)

	err = repo.LogAction(context.Background(), models.UserAction{UserID: 3, Action: "submit", Details: "record 4", IPAddress: "127.0.0.1", UserAgent: "curl"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
