package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/feichai0017/certificate-processor/internal/models"
)

// UploadRepository manages files_uploads rows.
type UploadRepository struct {
	db *sqlx.DB
}

func NewUploadRepository(db *sqlx.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create inserts the record and fills in its id and upload time.
func (r *UploadRepository) Create(ctx context.Context, file *models.UploadedFileRecord) (int64, error) {
	const query = `INSERT INTO files_uploads (filename, file_path, file_type, file_size, user_id)
VALUES ($1, $2, $3, $4, $5) RETURNING id, upload_time`
	row := r.db.QueryRowxContext(ctx, query, file.Filename, file.FilePath, file.FileType, file.FileSize, file.UserID)
	if err := row.Scan(&file.ID, &file.UploadTime); err != nil {
		return 0, &models.PersistenceError{Op: "create upload", Err: err}
	}
	return file.ID, nil
}

func (r *UploadRepository) GetByID(ctx context.Context, id int64) (*models.UploadedFileRecord, error) {
	const query = `SELECT id, filename, file_path, file_type, file_size, user_id, upload_time FROM files_uploads WHERE id = $1`
	var file models.UploadedFileRecord
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, &models.PersistenceError{Op: "get upload", Err: err}
	}
	return &file, nil
}
