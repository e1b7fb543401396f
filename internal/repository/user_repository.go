package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/feichai0017/certificate-processor/internal/models"
)

// UserRepository reads users for authorization.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID returns models.ErrNotFound for unknown ids.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	const query = `SELECT id, username, real_name, role, unit, is_active FROM users WHERE id = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, &models.PersistenceError{Op: "get user", Err: err}
	}
	return &user, nil
}

// LogAction appends to user_logs.
func (r *UserRepository) LogAction(ctx context.Context, action models.UserAction) error {
	const query = `INSERT INTO user_logs (user_id, action, details, ip_address, user_agent) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, action.UserID, action.Action, action.Details, action.IPAddress, action.UserAgent); err != nil {
		return &models.PersistenceError{Op: "log user action", Err: err}
	}
	return nil
}
