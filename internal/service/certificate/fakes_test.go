package certificate

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/certificate-processor/internal/agent"
	"github.com/feichai0017/certificate-processor/internal/models"
	"github.com/feichai0017/certificate-processor/pkg/logger"
	"github.com/feichai0017/certificate-processor/pkg/queue"
	"github.com/feichai0017/certificate-processor/pkg/session"
	"github.com/feichai0017/certificate-processor/pkg/storage"
)

var (
	student = models.User{ID: 1, Username: "2021000000001", RealName: "张三", Role: models.RoleStudent}
	teacher = models.User{ID: 2, Username: "t001", RealName: "王老师", Role: models.RoleTeacher}
	admin   = models.User{ID: 3, Username: "admin", RealName: "管理员", Role: models.RoleAdmin}
	other   = models.User{ID: 4, Username: "2021000000002", RealName: "李四", Role: models.RoleStudent}
)

// memoryRecords mirrors the store contract: updates and submits only touch
// drafts.
type memoryRecords struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]models.CertificateRecord
	failOn  string
	// 前 n 次提交失败
	failSubmits int
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{records: make(map[int64]models.CertificateRecord)}
}

func (m *memoryRecords) CreateDraft(ctx context.Context, f models.ExtractedFields, uploadFileID, ownerID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "create" {
		return 0, &models.PersistenceError{Op: "create certificate", Err: fmt.Errorf("connection reset")}
	}
	m.nextID++
	rec := recordFrom(m.nextID, f)
	rec.UploadFileID = uploadFileID
	rec.UserID = ownerID
	rec.Status = models.StatusDraft
	rec.CreatedAt = time.Now()
	m.records[rec.ID] = rec
	return rec.ID, nil
}

func (m *memoryRecords) UpdateDraft(ctx context.Context, id int64, f models.ExtractedFields) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.Status != models.StatusDraft {
		return false, nil
	}
	next := recordFrom(id, f)
	next.UploadFileID, next.UserID, next.Status, next.CreatedAt = rec.UploadFileID, rec.UserID, rec.Status, rec.CreatedAt
	m.records[id] = next
	return true, nil
}

func (m *memoryRecords) Submit(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSubmits > 0 {
		m.failSubmits--
		return false, &models.PersistenceError{Op: "submit certificate", Err: fmt.Errorf("connection reset")}
	}
	rec, ok := m.records[id]
	if !ok || rec.Status != models.StatusDraft {
		return false, nil
	}
	rec.Status = models.StatusSubmitted
	m.records[id] = rec
	return true, nil
}

func (m *memoryRecords) GetByID(ctx context.Context, id int64) (*models.CertificateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &rec, nil
}

func (m *memoryRecords) ListForUser(ctx context.Context, user models.User) ([]models.CertificateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CertificateRecord
	for _, rec := range m.records {
		switch user.Role {
		case models.RoleStudent:
			if rec.StudentID == user.Username {
				out = append(out, rec)
			}
		case models.RoleTeacher:
			if rec.AdvisorName == user.RealName {
				out = append(out, rec)
			}
		default:
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryRecords) ListAll(ctx context.Context, status models.CertificateStatus) ([]models.CertificateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CertificateRecord
	for _, rec := range m.records {
		if status == "" || rec.Status == status {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryRecords) get(id int64) models.CertificateRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

func (m *memoryRecords) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func recordFrom(id int64, f models.ExtractedFields) models.CertificateRecord {
	rec := models.CertificateRecord{
		ID:              id,
		StudentCollege:  f.StudentCollege,
		CompetitionName: f.CompetitionName,
		StudentID:       f.StudentID,
		StudentName:     f.StudentName,
		AwardCategory:   f.AwardCategory,
		AwardLevel:      f.AwardLevel,
		CompetitionType: f.CompetitionType,
		OrganizingUnit:  f.OrganizingUnit,
		AdvisorName:     f.AdvisorName,
	}
	if models.IsAwardDate(f.AwardDate) {
		d := f.AwardDate
		rec.AwardDate = &d
	}
	return rec
}

type memoryUploads struct {
	mu      sync.Mutex
	records []models.UploadedFileRecord
	err     error
}

func (m *memoryUploads) Create(ctx context.Context, file *models.UploadedFileRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	file.ID = int64(len(m.records) + 1)
	m.records = append(m.records, *file)
	return file.ID, nil
}

func (m *memoryUploads) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type actionLog struct {
	mu      sync.Mutex
	actions []models.UserAction
}

func (a *actionLog) LogAction(ctx context.Context, action models.UserAction) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	return nil
}

type extractFunc func(ctx context.Context, dataURI string) (models.ExtractedFields, error)

func (f extractFunc) Extract(ctx context.Context, dataURI string) (models.ExtractedFields, error) {
	return f(ctx, dataURI)
}

type capturingQueue struct {
	tasks []*queue.Task
}

func (q *capturingQueue) Enqueue(ctx context.Context, task *queue.Task) error {
	q.tasks = append(q.tasks, task)
	return nil
}

type fixture struct {
	svc      *Service
	records  *memoryRecords
	uploads  *memoryUploads
	actions  *actionLog
	sessions *session.MemoryStore
	storage  *storage.MemoryStorage
	queue    *capturingQueue
	log      *logger.TestLogger
}

func newFixture(t *testing.T, ex Extractor) *fixture {
	t.Helper()
	if ex == nil {
		ex = extractFunc(func(ctx context.Context, dataURI string) (models.ExtractedFields, error) {
			return models.ExtractedFields{}, nil
		})
	}
	f := &fixture{
		records:  newMemoryRecords(),
		uploads:  &memoryUploads{},
		actions:  &actionLog{},
		sessions: session.NewMemoryStore(session.DefaultTTL),
		storage:  storage.NewMemoryStorage(),
		queue:    &capturingQueue{},
		log:      logger.NewTestLogger(),
	}
	f.svc = NewService(Dependencies{
		Loaders:   agent.NewLoaderFactory(f.log),
		Extractor: ex,
		Records:   f.records,
		Uploads:   f.uploads,
		Actions:   f.actions,
		Sessions:  f.sessions,
		Storage:   f.storage,
		Queue:     f.queue,
		Logger:    f.log,
	})
	return f
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func twoPagePDF(t *testing.T) []byte {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetFont("Arial", "", 16)
	for i := 1; i <= 2; i++ {
		doc.AddPage()
		doc.Cell(40, 10, fmt.Sprintf("Certificate page %d", i))
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func decodeConfig(t *testing.T, raw []byte) image.Config {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	return cfg
}

func validFields() models.ExtractedFields {
	return models.ExtractedFields{
		StudentCollege:  "计算机学院",
		CompetitionName: "全国大学生数学建模竞赛",
		StudentID:       "2021000000001",
		StudentName:     "张三",
		AwardCategory:   "国家级",
		AwardLevel:      "一等奖",
		CompetitionType: "A类",
		OrganizingUnit:  "教育部",
		AwardDate:       "2024-05-01",
		AdvisorName:     "王老师",
	}
}
