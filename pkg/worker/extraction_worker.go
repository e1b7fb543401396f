package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/certificate-processor/pkg/logger"
	"github.com/feichai0017/certificate-processor/pkg/queue"
)

// ExtractionHandler applies an extraction result to its upload session.
type ExtractionHandler interface {
	HandleExtraction(ctx context.Context, payload queue.ExtractionPayload) error
}

// StatusSaver persists task progress for status queries.
type StatusSaver interface {
	SaveFinalStatus(ctx context.Context, status *queue.TaskStatus) error
}

type ExtractionWorker struct {
	BaseWorker
	handler  ExtractionHandler
	statuses StatusSaver
}

func NewExtractionWorker(cfg *Config, handler ExtractionHandler, statuses StatusSaver, log logger.Logger) *ExtractionWorker {
	w := &ExtractionWorker{
		BaseWorker: newBaseWorker(cfg, log),
		handler:    handler,
		statuses:   statuses,
	}

	// 注册任务处理器
	w.mux.HandleFunc(queue.TaskTypeCertificateExtract, w.handleExtraction)
	return w
}

func (w *ExtractionWorker) handleExtraction(ctx context.Context, t *asynq.Task) error {
	var task queue.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		// 无法解析的任务不再重试
		return fmt.Errorf("failed to unmarshal task: %v: %w", err, asynq.SkipRetry)
	}

	payload, err := task.ExtractionPayload()
	if err != nil {
		w.logger.Error("Invalid task data",
			logger.String("taskId", task.ID),
			logger.Error(err),
		)
		w.saveStatus(ctx, &task, queue.StatusFailed, err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("Processing extraction task",
		logger.String("taskId", task.ID),
		logger.String("sessionId", payload.SessionID),
	)

	started := time.Now()
	w.saveStatus(ctx, &task, queue.StatusRunning, nil)
	w.writeResult(t, fmt.Sprintf(`{"status":%q,"progress":0}`, queue.StatusRunning))

	if err := w.handler.HandleExtraction(ctx, payload); err != nil {
		w.logger.Error("Extraction task failed",
			logger.String("taskId", task.ID),
			logger.String("sessionId", payload.SessionID),
			logger.Error(err),
		)
		w.saveStatus(ctx, &task, queue.StatusFailed, err)
		w.writeResult(t, fmt.Sprintf(`{"status":%q,"error":%q}`, queue.StatusFailed, err.Error()))
		return err
	}

	w.saveStatus(ctx, &task, queue.StatusCompleted, nil)
	w.writeResult(t, fmt.Sprintf(`{"status":%q,"progress":100}`, queue.StatusCompleted))

	w.logger.Info("Extraction task completed",
		logger.String("taskId", task.ID),
		logger.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func (w *ExtractionWorker) saveStatus(ctx context.Context, task *queue.Task, status string, cause error) {
	if w.statuses == nil || task.ID == "" {
		return
	}
	s := &queue.TaskStatus{TaskID: task.ID, Status: status, StartedAt: time.Now()}
	s.SessionID, s.UserID = task.Owner()
	switch status {
	case queue.StatusCompleted:
		s.Progress = 1.0
		s.FinishedAt = time.Now()
	case queue.StatusRunning:
		s.Progress = 0.5
	case queue.StatusFailed:
		s.FinishedAt = time.Now()
	}
	if cause != nil {
		s.Error = cause.Error()
	}
	if err := w.statuses.SaveFinalStatus(ctx, s); err != nil {
		w.logger.Warn("Failed to save task status",
			logger.String("taskId", task.ID),
			logger.Error(err),
		)
	}
}

func (w *ExtractionWorker) writeResult(t *asynq.Task, body string) {
	rw := t.ResultWriter()
	if rw == nil {
		return
	}
	if _, err := rw.Write([]byte(body)); err != nil {
		w.logger.Error("Failed to write task result", logger.Error(err))
	}
}
