package docparse_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/features/job"
	"docpipe/internal/adapter/docparse"
)

func TestClient_Parse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/parse", r.URL.Path)
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "%PDF raw", string(body))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"text":"extracted text","metadata":{"pages":"3"}}`))
	}))
	defer ts.Close()

	client := docparse.NewClient(ts.URL)
	text, meta, err := client.Parse(context.Background(), []byte("%PDF raw"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "extracted text", text)
	assert.Equal(t, "3", meta["pages"])
}

func TestClient_Parse_ClientErrorIsPermanent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnsupportedMediaType)
		w.Write([]byte("cannot parse this"))
	}))
	defer ts.Close()

	client := docparse.NewClient(ts.URL)
	_, _, err := client.Parse(context.Background(), []byte("junk"), "application/x-unknown")
	require.Error(t, err)
	assert.True(t, job.IsPermanent(err))
}

func TestClient_Parse_RateLimitRetries(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusRequestTimeout} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		client := docparse.NewClient(ts.URL)
		_, _, err := client.Parse(context.Background(), []byte("raw"), "text/plain")
		require.Error(t, err)
		assert.False(t, job.IsPermanent(err), "status %d must stay retryable", status)
		ts.Close()
	}
}

func TestClient_Parse_ServerErrorRetries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := docparse.NewClient(ts.URL)
	_, _, err := client.Parse(context.Background(), []byte("raw"), "text/plain")
	require.Error(t, err)
	assert.False(t, job.IsPermanent(err))
}
