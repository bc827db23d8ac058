package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDocumentID tests deterministic id derivation
func TestDocumentID(t *testing.T) {
	id := DocumentID("/photos/2024/img.jpg")

	// sha256 hex is 64 lowercase hex chars
	assert.Len(t, id, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", id)

	// Same path, same id; different path, different id
	assert.Equal(t, id, DocumentID("/photos/2024/img.jpg"))
	assert.NotEqual(t, id, DocumentID("/photos/2024/img2.jpg"))
}

// TestDocumentIDKnownValue pins the hash so the id scheme cannot drift
// silently.
func TestDocumentIDKnownValue(t *testing.T) {
	assert.Equal(t,
		"70bd51bc275307e820db99e3582864dae3df1b8e973449f4fedfbbfc21dff80c",
		DocumentID("/photos/a/b.jpg"))
}

// TestFileEventJSON tests the wire field names
func TestFileEventJSON(t *testing.T) {
	modified := "2024-06-01T12:00:00Z"
	ev := FileEvent{
		EventType:      EventCreated,
		FilePath:       "/photos/img.jpg",
		ContainerPath:  "/mnt/nas/photos/img.jpg",
		FileName:       "img.jpg",
		FileExtension:  ".jpg",
		FileSize:       1234,
		ContentHash:    "abc",
		ModifiedDate:   &modified,
		DirectoryPath:  "/photos",
		DirectoryDepth: 0,
		QueuedAt:       "2024-06-01T12:00:05Z",
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))

	for _, key := range []string{
		"event_type", "file_path", "container_path", "file_name",
		"file_extension", "file_size", "content_hash", "modified_date",
		"directory_path", "directory_depth", "queued_at",
	} {
		assert.Contains(t, m, key)
	}
	assert.Equal(t, "created", m["event_type"])
	assert.Equal(t, float64(1234), m["file_size"])
}
