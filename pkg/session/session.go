package session

import (
	"context"
	"errors"
	"time"

	"github.com/feichai0017/certificate-processor/internal/models"
)

// DefaultTTL 会话过期时间
const DefaultTTL = 2 * time.Hour

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = models.ErrSessionNotFound

// ErrSkip returned by an UpdateFunc leaves the stored value untouched and
// makes Update return the current value with a nil error.
var ErrSkip = errors.New("session update skipped")

// UpdateFunc derives the next state from the current one.
type UpdateFunc func(current models.WorkingUpload) (models.WorkingUpload, error)

// Store keeps one WorkingUpload per upload session. Values are replaced
// wholesale; Update applies fn atomically with respect to other writers.
type Store interface {
	Get(ctx context.Context, id string) (models.WorkingUpload, error)
	Put(ctx context.Context, state models.WorkingUpload) error
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, id string, fn UpdateFunc) (models.WorkingUpload, bool, error)
}
