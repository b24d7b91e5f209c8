package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	wstore "docpipe/internal/adapter/weaviate"
	"docpipe/internal/app"
	"docpipe/internal/config"
	"docpipe/internal/testutils"
)

type MockE2EEmbedder struct {
	mock.Mock
}

func (m *MockE2EEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type stubE2EPublisher struct{}

func (stubE2EPublisher) Publish(topic string, body []byte) error { return nil }

type stubE2EParser struct{}

func (stubE2EParser) Parse(ctx context.Context, content []byte, contentType string) (string, map[string]string, error) {
	return string(content), map[string]string{"parser": "stub"}, nil
}

func TestApp_EndToEnd_Pipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E integration test")
	}

	// 1. Setup Infrastructure
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, app.EnsureSchemaWithRetry(ctx, s.Weaviate, 5, time.Second))

	dir := t.TempDir()
	cfg := &config.Config{
		UploadDir:             filepath.Join(dir, "uploads"),
		QueryLogPath:          filepath.Join(dir, "logs", "query.log"),
		ServerPort:            0,
		MaxUploadSizeMB:       1,
		BackoffBase:           2,
		BackoffUnit:           time.Second,
		JobMaxRetries:         3,
		JobLease:              time.Minute,
		SchedulerPollInterval: 200 * time.Millisecond,
		SchedulerReapInterval: 5 * time.Second,
		JobBatchSize:          10,
		WorkerConcurrency:     2,
		ChunkMaxTokens:        64,
		ChunkOverlap:          0,
		RetrievalTimeout:      5 * time.Second,
		RetrievalThreshold:    0.7,
		RetrievalMaxTokens:    2048,
		RetrievalCandidates:   10,
	}

	// 2. Mocks for the external services
	mockEmbedder := new(MockE2EEmbedder)
	mockEmbedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1, 0.2, 0.3}, nil)

	// 3. App
	application, err := app.New(cfg, s.DB, wstore.NewStore(s.Weaviate), stubE2EPublisher{}, mockEmbedder, stubE2EParser{})
	require.NoError(t, err)

	go application.Scheduler.Run(ctx) //nolint:errcheck

	// 4. Submit a document
	content := []byte("# Section\n\nThe pipeline extracts, chunks and embeds this body for retrieval.")
	req := httptest.NewRequest("POST", "/documents", bytes.NewReader(content))
	req.Header.Set("X-Owner-ID", "owner-e2e")
	req.Header.Set("Content-Type", "text/markdown")
	w := httptest.NewRecorder()
	application.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.ID)
	docID := created.Data.ID

	// 5. Re-submitting identical bytes is a duplicate
	dupReq := httptest.NewRequest("POST", "/documents", bytes.NewReader(content))
	dupReq.Header.Set("X-Owner-ID", "owner-e2e")
	dupW := httptest.NewRecorder()
	application.Handler.ServeHTTP(dupW, dupReq)
	require.Equal(t, http.StatusConflict, dupW.Code)
	assert.Contains(t, dupW.Body.String(), docID)

	// 6. Wait for the pipeline to finish both stages
	require.Eventually(t, func() bool {
		doc, err := application.Documents.Get(ctx, docID)
		return err == nil && doc.Status == "completed"
	}, 30*time.Second, 250*time.Millisecond, "document never completed")

	// 7. Query through HTTP, scoped to the owner
	queryBody := []byte(`{"query":"what does the pipeline do"}`)
	qReq := httptest.NewRequest("POST", "/query", bytes.NewReader(queryBody))
	qReq.Header.Set("X-Owner-ID", "owner-e2e")
	qW := httptest.NewRecorder()
	application.Handler.ServeHTTP(qW, qReq)
	require.Equal(t, http.StatusOK, qW.Code, qW.Body.String())

	var queryResp struct {
		Results []struct {
			DocumentID string  `json:"document_id"`
			Content    string  `json:"content"`
			Score      float32 `json:"score"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(qW.Body.Bytes(), &queryResp))
	require.NotEmpty(t, queryResp.Results)
	assert.Equal(t, docID, queryResp.Results[0].DocumentID)
	assert.Contains(t, queryResp.Results[0].Content, "pipeline")

	// 8. Another owner sees nothing
	otherReq := httptest.NewRequest("POST", "/query", bytes.NewReader(queryBody))
	otherReq.Header.Set("X-Owner-ID", "owner-other")
	otherW := httptest.NewRecorder()
	application.Handler.ServeHTTP(otherW, otherReq)
	require.Equal(t, http.StatusOK, otherW.Code)
	assert.JSONEq(t, `{"results":[]}`, otherW.Body.String())

	mockEmbedder.AssertExpectations(t)
}
