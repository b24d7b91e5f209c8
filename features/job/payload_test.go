package job_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/features/job"
)

func TestDecodeParsePayload(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		raw := json.RawMessage(`{"document_id":"d1","blob_path":"/tmp/x","content_type":"text/plain"}`)
		p, err := job.DecodeParsePayload(raw)
		require.NoError(t, err)
		assert.Equal(t, "d1", p.DocumentID)
		assert.Equal(t, "/tmp/x", p.BlobPath)
	})

	t.Run("MissingFields", func(t *testing.T) {
		_, err := job.DecodeParsePayload(json.RawMessage(`{"document_id":"d1"}`))
		assert.Error(t, err)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		_, err := job.DecodeParsePayload(json.RawMessage(`{`))
		assert.Error(t, err)
	})
}

func TestDecodeChunkEmbedPayload(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		raw := json.RawMessage(`{"document_id":"d1","text":"hello","chunker_name":"markdown","chunker_version":"v1"}`)
		p, err := job.DecodeChunkEmbedPayload(raw)
		require.NoError(t, err)
		assert.Equal(t, "markdown", p.ChunkerName)
	})

	t.Run("MissingChunkerIdentity", func(t *testing.T) {
		raw := json.RawMessage(`{"document_id":"d1","text":"hello"}`)
		_, err := job.DecodeChunkEmbedPayload(raw)
		assert.Error(t, err)
	})
}

func TestRequiredResultKeys(t *testing.T) {
	assert.Equal(t, []string{"text"}, job.RequiredResultKeys(job.TypeParse))
	assert.Equal(t, []string{"chunk_ids"}, job.RequiredResultKeys(job.TypeChunkEmbed))
	assert.Nil(t, job.RequiredResultKeys(job.Type("unknown")))
}

func TestPermanent(t *testing.T) {
	base := errors.New("document gone")

	assert.False(t, job.IsPermanent(base))
	assert.True(t, job.IsPermanent(job.Permanent(base)))

	// Survives further wrapping.
	wrapped := errors.Join(errors.New("outer"), job.Permanent(base))
	assert.True(t, job.IsPermanent(wrapped))

	assert.Nil(t, job.Permanent(nil))
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, job.StatusCompleted.Terminal())
	assert.True(t, job.StatusFailed.Terminal())
	assert.False(t, job.StatusPending.Terminal())
	assert.False(t, job.StatusRunning.Terminal())
	assert.False(t, job.StatusRetrying.Terminal())
}
