package certificate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/certificate-processor/internal/agent/extractor"
	"github.com/feichai0017/certificate-processor/internal/models"
	"github.com/feichai0017/certificate-processor/pkg/logger"
	"github.com/feichai0017/certificate-processor/pkg/queue"
)

func upload(t *testing.T, f *fixture) models.WorkingUpload {
	t.Helper()
	state, err := f.svc.Upload(context.Background(), student, UploadRequest{Filename: "award.png", Data: pngBytes(t, 400, 300)})
	require.NoError(t, err)
	return state
}

func TestExtractAppliesFields(t *testing.T) {
	var seen string
	f := newFixture(t, extractFunc(func(ctx context.Context, dataURI string) (models.ExtractedFields, error) {
		seen = dataURI
		return validFields(), nil
	}))
	state := upload(t, f)

	next, err := f.svc.Extract(context.Background(), student, state.SessionID)

	require.NoError(t, err)
	assert.Equal(t, state.Image.DataURI, seen)
	assert.Equal(t, models.StageExtracted, next.Stage)
	require.NotNil(t, next.Fields)
	assert.Equal(t, validFields(), *next.Fields)
}

func TestExtractFailureOpensEmptyForm(t *testing.T) {
	f := newFixture(t, extractFunc(func(ctx context.Context, dataURI string) (models.ExtractedFields, error) {
		return models.ExtractedFields{}, &models.ExtractionError{Cause: "extraction request timed out"}
	}))
	state := upload(t, f)

	next, err := f.svc.Extract(context.Background(), student, state.SessionID)

	var extractErr *models.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, "extraction request timed out", next.ExtractError)
	require.NotNil(t, next.Fields)
	assert.True(t, next.Fields.IsEmpty())

	form, err := f.svc.Form(context.Background(), student, state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "extraction request timed out", form.ExtractError)
	assert.Equal(t, student.Username, form.Fields.StudentID)
	assert.Empty(t, form.Fields.CompetitionName)
}

func TestStaleExtractionResultIsDiscarded(t *testing.T) {
	var f *fixture
	var sessionID string
	f = newFixture(t, extractFunc(func(ctx context.Context, dataURI string) (models.ExtractedFields, error) {
		// 提取期间用户旋转了图片
		_, err := f.svc.Retransform(ctx, student, sessionID, models.TransformOptions{Angle: 90})
		require.NoError(t, err)
		return validFields(), nil
	}))
	state := upload(t, f)
	sessionID = state.SessionID

	next, err := f.svc.Extract(context.Background(), student, sessionID)

	require.NoError(t, err)
	assert.Nil(t, next.Fields)
	assert.NotEqual(t, state.Fingerprint, next.Fingerprint)
	assert.Equal(t, float64(90), next.Options.Angle)
}

func TestEnqueueAndHandleExtraction(t *testing.T) {
	f := newFixture(t, extractFunc(func(ctx context.Context, dataURI string) (models.ExtractedFields, error) {
		return validFields(), nil
	}))
	state := upload(t, f)
	ctx := context.Background()

	taskID, err := f.svc.EnqueueExtraction(ctx, student, state.SessionID)
	require.NoError(t, err)
	require.Len(t, f.queue.tasks, 1)
	assert.Equal(t, taskID, f.queue.tasks[0].ID)

	payload, err := f.queue.tasks[0].ExtractionPayload()
	require.NoError(t, err)
	assert.Equal(t, state.Fingerprint, payload.Fingerprint)

	require.NoError(t, f.svc.HandleExtraction(ctx, payload))

	next, err := f.sessions.Get(ctx, state.SessionID)
	require.NoError(t, err)
	require.NotNil(t, next.Fields)
	assert.Equal(t, "王老师", next.Fields.AdvisorName)
}

func TestHandleExtractionSkipsReplacedImage(t *testing.T) {
	called := false
	f := newFixture(t, extractFunc(func(ctx context.Context, dataURI string) (models.ExtractedFields, error) {
		called = true
		return validFields(), nil
	}))
	state := upload(t, f)

	err := f.svc.HandleExtraction(context.Background(), queue.ExtractionPayload{
		SessionID: state.SessionID, Fingerprint: "outdated", UserID: student.ID,
	})
	require.NoError(t, err)
	assert.False(t, called)

	err = f.svc.HandleExtraction(context.Background(), queue.ExtractionPayload{SessionID: "expired", Fingerprint: "x"})
	assert.NoError(t, err)
}

func TestEnqueueWithoutQueue(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.queue = nil
	state := upload(t, f)

	_, err := f.svc.EnqueueExtraction(context.Background(), student, state.SessionID)
	assert.ErrorIs(t, err, ErrAsyncUnavailable)
}

// The model answers with plain text: the form opens empty and nothing fails.
func TestNonJSONModelReplyYieldsEmptyFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "not json"}},
			},
		})
		w.Write(body)
	}))
	defer srv.Close()

	client := extractor.NewClient(extractor.Config{Endpoint: srv.URL, APIKey: "k", Timeout: 5 * time.Second}, logger.NewNop(), nil)
	defer client.Close()
	f := newFixture(t, client)
	state := upload(t, f)

	next, err := f.svc.Extract(context.Background(), student, state.SessionID)

	require.NoError(t, err)
	require.NotNil(t, next.Fields)
	assert.Equal(t, models.ExtractedFields{}, *next.Fields)
	assert.Len(t, next.Fields.Map(), 10)
	assert.Empty(t, next.ExtractError)
}
