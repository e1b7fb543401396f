package certificate

import (
	"context"
	"errors"
	"fmt"

	"github.com/feichai0017/certificate-processor/internal/models"
	"github.com/feichai0017/certificate-processor/pkg/logger"
	"github.com/feichai0017/certificate-processor/pkg/queue"
	"github.com/feichai0017/certificate-processor/pkg/session"
)

// ErrAsyncUnavailable 未配置任务队列
var ErrAsyncUnavailable = errors.New("asynchronous extraction is not configured")

// Extract runs field extraction on the current working image. An
// ExtractionError is recorded in the session with an all-empty field set
// and returned together with that state. The result is dropped when the
// working image changed while the call was in flight.
func (s *Service) Extract(ctx context.Context, user models.User, sessionID string) (models.WorkingUpload, error) {
	state, err := s.loadSession(ctx, user, sessionID)
	if err != nil {
		return models.WorkingUpload{}, err
	}

	next, extractErr, err := s.extractAndApply(ctx, state)
	if err != nil {
		return models.WorkingUpload{}, err
	}
	s.audit(ctx, user, "extract_certificate", fmt.Sprintf("提取证书字段: %s", state.Original.Name))
	return next, extractErr
}

// EnqueueExtraction schedules extraction on the worker and returns the task id.
func (s *Service) EnqueueExtraction(ctx context.Context, user models.User, sessionID string) (string, error) {
	if s.queue == nil {
		return "", ErrAsyncUnavailable
	}
	state, err := s.loadSession(ctx, user, sessionID)
	if err != nil {
		return "", err
	}

	task, err := queue.NewExtractionTask(queue.ExtractionPayload{
		SessionID:   state.SessionID,
		Fingerprint: state.Fingerprint,
		UserID:      user.ID,
	})
	if err != nil {
		return "", err
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return "", fmt.Errorf("failed to enqueue extraction: %w", err)
	}

	logger.FromContext(ctx, s.logger).Info("Extraction queued",
		logger.String("sessionId", sessionID),
		logger.String("taskId", task.ID),
	)
	return task.ID, nil
}

// HandleExtraction is the worker side of EnqueueExtraction. Expired sessions
// and replaced images are skipped without error. Extraction failures are
// recorded in the session, not retried.
func (s *Service) HandleExtraction(ctx context.Context, payload queue.ExtractionPayload) error {
	state, err := s.sessions.Get(ctx, payload.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		s.logger.Info("Session gone before extraction", logger.String("sessionId", payload.SessionID))
		return nil
	}
	if err != nil {
		return err
	}
	if state.Fingerprint != payload.Fingerprint {
		s.logger.Info("Working image replaced before extraction", logger.String("sessionId", payload.SessionID))
		return nil
	}

	_, extractErr, err := s.extractAndApply(ctx, state)
	if err != nil {
		return err
	}
	if extractErr != nil {
		s.logger.Warn("Queued extraction failed",
			logger.String("sessionId", payload.SessionID),
			logger.Error(extractErr),
		)
	}
	return nil
}

// extractAndApply calls the extractor without holding anything and then
// applies the outcome only if the fingerprint it started from is current.
func (s *Service) extractAndApply(ctx context.Context, state models.WorkingUpload) (models.WorkingUpload, error, error) {
	fingerprint := state.Fingerprint

	fields, extractErr := s.extractor.Extract(ctx, state.Image.DataURI)
	cause := ""
	if extractErr != nil {
		var ee *models.ExtractionError
		if !errors.As(extractErr, &ee) {
			return models.WorkingUpload{}, nil, extractErr
		}
		cause = ee.Cause
		fields = models.ExtractedFields{}
	}

	next, written, err := s.sessions.Update(ctx, state.SessionID, func(cur models.WorkingUpload) (models.WorkingUpload, error) {
		if cur.Fingerprint != fingerprint {
			return cur, session.ErrSkip
		}
		return cur.WithExtraction(fields, cause), nil
	})
	if err != nil {
		return models.WorkingUpload{}, nil, err
	}
	if !written {
		s.logger.Info("Discarded stale extraction result", logger.String("sessionId", state.SessionID))
		return next, nil, nil
	}
	return next, extractErr, nil
}
