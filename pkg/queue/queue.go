// pkg/queue/queue.go
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// TaskType 定义任务类型
const (
	TaskTypeCertificateExtract = "certificate:extract"
)

// 队列名称
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// 任务状态
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const statusTTL = 24 * time.Hour

var queueNames = []string{QueueCritical, QueueDefault, QueueLow}

// Queue 接口定义
type Queue interface {
	Enqueue(ctx context.Context, task *Task) error
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	CancelTask(ctx context.Context, taskID string) error
	SaveFinalStatus(ctx context.Context, status *TaskStatus) error
}

// Task 定义任务结构
type Task struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Priority  int               `json:"priority"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ExtractionPayload identifies the working image an extraction was started
// for. The fingerprint lets the worker drop results for a replaced image.
type ExtractionPayload struct {
	SessionID   string `json:"sessionId"`
	Fingerprint string `json:"fingerprint"`
	UserID      int64  `json:"userId"`
}

// TaskStatus 定义任务状态。SessionID 和 UserID 标识任务归属
type TaskStatus struct {
	TaskID     string    `json:"taskId"`
	SessionID  string    `json:"sessionId,omitempty"`
	UserID     int64     `json:"userId,omitempty"`
	Status     string    `json:"status"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// NewExtractionTask builds a certificate:extract task with a fresh id.
func NewExtractionTask(p ExtractionPayload) (*Task, error) {
	if p.SessionID == "" || p.Fingerprint == "" {
		return nil, errors.New("extraction task requires session id and fingerprint")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return &Task{
		ID:        uuid.NewString(),
		Type:      TaskTypeCertificateExtract,
		Priority:  2,
		Payload:   raw,
		Metadata:  map[string]string{"sessionId": p.SessionID, "userId": strconv.FormatInt(p.UserID, 10)},
		CreatedAt: time.Now(),
	}, nil
}

// Owner returns the session and user recorded in the task metadata.
func (t *Task) Owner() (sessionID string, userID int64) {
	userID, _ = strconv.ParseInt(t.Metadata["userId"], 10, 64)
	return t.Metadata["sessionId"], userID
}

// ExtractionPayload decodes the task payload.
func (t *Task) ExtractionPayload() (ExtractionPayload, error) {
	var p ExtractionPayload
	if t.Type != TaskTypeCertificateExtract {
		return p, fmt.Errorf("unexpected task type %q", t.Type)
	}
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if p.SessionID == "" || p.Fingerprint == "" {
		return p, errors.New("invalid task data: missing session id or fingerprint")
	}
	return p, nil
}

// AsynqQueue 实现
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	redis     *redis.Client
	config    QueueConfig
}

// QueueConfig 定义队列配置
type QueueConfig struct {
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	MaxRetries     int
	ProcessTimeout time.Duration
}

// RedisOpt asynq connection options for the config.
func (c QueueConfig) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// NewAsynqQueue 创建新的队列实例，redisClient 用于保存任务状态
func NewAsynqQueue(cfg QueueConfig, redisClient *redis.Client) *AsynqQueue {
	redisOpt := cfg.RedisOpt()
	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redis:     redisClient,
		config:    cfg,
	}
}

// Enqueue 将任务加入队列
func (q *AsynqQueue) Enqueue(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	// 序列化整个任务
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	opts := append(taskOptions(q.config, task.Priority), asynq.TaskID(task.ID))

	t := asynq.NewTask(task.Type, payload, opts...)
	info, err := q.client.EnqueueContext(ctx, t)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	task.ID = info.ID

	sessionID, userID := task.Owner()
	if err := q.SaveFinalStatus(ctx, &TaskStatus{
		TaskID:    info.ID,
		SessionID: sessionID,
		UserID:    userID,
		Status:    StatusPending,
		StartedAt: time.Now(),
	}); err != nil {
		return err
	}
	return nil
}

func taskOptions(cfg QueueConfig, priority int) []asynq.Option {
	maxRetry := cfg.MaxRetries
	if maxRetry < 0 {
		maxRetry = 0
	}
	timeout := cfg.ProcessTimeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return []asynq.Option{
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(timeout),
		asynq.Queue(QueueName(priority)),
	}
}

// QueueName 根据优先级选择队列
func QueueName(priority int) string {
	switch priority {
	case 1:
		return QueueCritical
	case 2:
		return QueueDefault
	default:
		return QueueLow
	}
}

// GetTaskStatus 获取任务状态
func (q *AsynqQueue) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	// 首先尝试从 Redis 获取状态
	data, err := q.redis.Get(ctx, statusKey(taskID)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}

	if err == nil {
		var status TaskStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status: %w", err)
		}
		return &status, nil
	}

	// 如果 Redis 中没有，从所有队列中查找
	var lastErr error
	for _, queueName := range queueNames {
		info, err := q.inspector.GetTaskInfo(queueName, taskID)
		if err == nil {
			return convertAsynqStatus(info), nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("task not found in any queue: %w", lastErr)
}

// CancelTask 取消任务
func (q *AsynqQueue) CancelTask(ctx context.Context, taskID string) error {
	var lastErr error
	for _, queueName := range queueNames {
		err := q.inspector.DeleteTask(queueName, taskID)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("failed to cancel task: %w", lastErr)
}

// SaveFinalStatus 保存任务状态
func (q *AsynqQueue) SaveFinalStatus(ctx context.Context, status *TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := q.redis.Set(ctx, statusKey(status.TaskID), data, statusTTL).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}

	return nil
}

// Config 队列配置
func (q *AsynqQueue) Config() QueueConfig {
	return q.config
}

// Close 关闭客户端连接
func (q *AsynqQueue) Close() error {
	if err := q.inspector.Close(); err != nil {
		return err
	}
	return q.client.Close()
}

func statusKey(taskID string) string {
	return "certificate:task_status:" + taskID
}

// convertAsynqStatus 将 asynq 状态转换为 TaskStatus
func convertAsynqStatus(info *asynq.TaskInfo) *TaskStatus {
	status := &TaskStatus{
		TaskID:    info.ID,
		StartedAt: info.NextProcessAt,
	}
	var task Task
	if err := json.Unmarshal(info.Payload, &task); err == nil {
		status.SessionID, status.UserID = task.Owner()
	}

	switch info.State {
	case asynq.TaskStatePending, asynq.TaskStateScheduled:
		status.Status = StatusPending
	case asynq.TaskStateActive:
		status.Status = StatusRunning
		status.Progress = 0.5
	case asynq.TaskStateCompleted:
		status.Status = StatusCompleted
		status.Progress = 1.0
		status.FinishedAt = info.CompletedAt
	case asynq.TaskStateRetry, asynq.TaskStateArchived:
		status.Status = StatusFailed
		status.Error = info.LastErr
	default:
		status.Status = info.State.String()
	}

	return status
}
