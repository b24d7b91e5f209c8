package worker_test

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"docpipe/features/document"
	"docpipe/features/job"
	"docpipe/internal/worker"
)

// Mocks

type MockDocuments struct{ mock.Mock }

func (m *MockDocuments) Get(ctx context.Context, id string) (*document.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockDocuments) UpdateStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type MockBlobReader struct{ mock.Mock }

func (m *MockBlobReader) Read(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockParser struct{ mock.Mock }

func (m *MockParser) Parse(ctx context.Context, content []byte, contentType string) (string, map[string]string, error) {
	args := m.Called(ctx, content, contentType)
	var meta map[string]string
	if args.Get(1) != nil {
		meta = args.Get(1).(map[string]string)
	}
	return args.String(0), meta, args.Error(2)
}

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockChunkStore struct{ mock.Mock }

func (m *MockChunkStore) StoreChunk(ctx context.Context, chunk worker.Chunk) error {
	args := m.Called(ctx, chunk)
	return args.Error(0)
}

func (m *MockChunkStore) ExistingChunkIDs(ctx context.Context, documentID string) (map[string]bool, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

type MockJobCompleter struct{ mock.Mock }

func (m *MockJobCompleter) Complete(ctx context.Context, id string, result json.RawMessage) (bool, error) {
	args := m.Called(ctx, id, result)
	return args.Bool(0), args.Error(1)
}

type MockAdvancer struct{ mock.Mock }

func (m *MockAdvancer) Advance(ctx context.Context, completedJobID string, next job.Type, payload interface{}, requiredResultKeys []string) (string, error) {
	args := m.Called(ctx, completedJobID, next, payload, requiredResultKeys)
	return args.String(0), args.Error(1)
}

func (m *MockAdvancer) NotifyTerminal(ctx context.Context, documentID, jobID, stage, event, errMsg string) {
	m.Called(ctx, documentID, jobID, stage, event, errMsg)
}
