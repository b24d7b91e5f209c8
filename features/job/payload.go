package job

import (
	"encoding/json"
	"fmt"
)

// One payload and one result shape per job type. Keeping these as concrete
// structs makes stage-result validation structural instead of ad hoc map poking.

type ParsePayload struct {
	DocumentID  string `json:"document_id"`
	BlobPath    string `json:"blob_path"`
	ContentType string `json:"content_type"`
}

type ParseResult struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type ChunkEmbedPayload struct {
	DocumentID     string `json:"document_id"`
	Text           string `json:"text"`
	ChunkerName    string `json:"chunker_name"`
	ChunkerVersion string `json:"chunker_version"`
}

type ChunkEmbedResult struct {
	ChunkIDs []string `json:"chunk_ids"`
	Embedded int      `json:"embedded"`
	Skipped  int      `json:"skipped"`
}

func DecodeParsePayload(raw json.RawMessage) (ParsePayload, error) {
	var p ParsePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode parse payload: %w", err)
	}
	if p.DocumentID == "" || p.BlobPath == "" {
		return p, fmt.Errorf("parse payload missing document_id or blob_path")
	}
	return p, nil
}

func DecodeChunkEmbedPayload(raw json.RawMessage) (ChunkEmbedPayload, error) {
	var p ChunkEmbedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode chunk_embed payload: %w", err)
	}
	if p.DocumentID == "" {
		return p, fmt.Errorf("chunk_embed payload missing document_id")
	}
	if p.ChunkerName == "" || p.ChunkerVersion == "" {
		return p, fmt.Errorf("chunk_embed payload missing chunker identity")
	}
	return p, nil
}

func EncodePayload(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// RequiredResultKeys lists the keys a stage's result must carry before the
// pipeline may advance past it.
func RequiredResultKeys(t Type) []string {
	switch t {
	case TypeParse:
		return []string{"text"}
	case TypeChunkEmbed:
		return []string{"chunk_ids"}
	default:
		return nil
	}
}
