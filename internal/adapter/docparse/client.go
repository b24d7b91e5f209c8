// Package docparse calls the external parser service that turns raw document
// bytes (PDF, HTML, plain text) into extracted text plus metadata.
package docparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"docpipe/features/job"
)

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type parseResponse struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Parse posts the raw bytes and returns extracted text with metadata. A 4xx
// answer means the document itself is unparseable and retrying cannot help —
// except 408 and 429, which say nothing about the document; those stay
// retryable alongside 5xx and transport errors.
func (c *Client) Parse(ctx context.Context, content []byte, contentType string) (string, map[string]string, error) {
	url := c.baseURL + "/parse"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(content))
	if err != nil {
		return "", nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("parser request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
		resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusRequestTimeout {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", nil, job.Permanent(fmt.Errorf("parser rejected document: %d %s", resp.StatusCode, bytes.TrimSpace(body)))
	}
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("parser error: %d", resp.StatusCode)
	}

	var result parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", nil, fmt.Errorf("decode parser response: %w", err)
	}
	return result.Text, result.Metadata, nil
}
