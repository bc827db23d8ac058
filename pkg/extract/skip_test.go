package extract

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trawlerdev/trawler/pkg/solr"
)

func selectWithDoc(hash string, size int64, modified string) string {
	return fmt.Sprintf(
		`{"responseHeader":{"QTime":1},"response":{"numFound":1,"docs":[{"content_hash":%q,"file_size":%d,"modified_date":%q}]}}`,
		hash, size, modified)
}

// TestUpdateNeeded tests the skip-if-unchanged decision
func TestUpdateNeeded(t *testing.T) {
	candidate := solr.Document{
		"file_path":     "/photos/img.jpg",
		"content_hash":  "aaa",
		"file_size":     int64(100),
		"modified_date": "2024-06-01T12:00:00Z",
	}

	tests := []struct {
		name       string
		selectBody string
		want       bool
	}{
		{
			name:       "no existing document writes",
			selectBody: emptySelect,
			want:       true,
		},
		{
			name:       "same hash and size skips",
			selectBody: selectWithDoc("aaa", 100, "2024-05-01T00:00:00Z"),
			want:       false,
		},
		{
			name:       "same hash different size writes",
			selectBody: selectWithDoc("aaa", 999, "2024-05-01T00:00:00Z"),
			want:       true,
		},
		{
			name:       "not newer at same size skips",
			selectBody: selectWithDoc("bbb", 100, "2024-06-01T12:00:00Z"),
			want:       false,
		},
		{
			name:       "stored copy newer skips",
			selectBody: selectWithDoc("bbb", 100, "2024-07-01T00:00:00Z"),
			want:       false,
		},
		{
			name:       "candidate newer writes",
			selectBody: selectWithDoc("bbb", 100, "2024-01-01T00:00:00Z"),
			want:       true,
		},
		{
			name: "duplicate entries write and warn",
			selectBody: `{"responseHeader":{"QTime":1},"response":{"numFound":2,"docs":[` +
				`{"content_hash":"aaa","file_size":100,"modified_date":"2024-06-01T12:00:00Z"},` +
				`{"content_hash":"aaa","file_size":100,"modified_date":"2024-06-01T12:00:00Z"}]}}`,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeSolr(t, tt.selectBody)
			w, _ := newTestWorker(t, fake.srv.URL)

			needed, err := w.updateNeeded(context.Background(), candidate, zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tt.want, needed)
		})
	}
}

// TestUpdateNeededBackendDown tests that select failures report an error so
// the caller can index anyway.
func TestUpdateNeededBackendDown(t *testing.T) {
	w, _ := newTestWorker(t, "http://127.0.0.1:1")

	needed, err := w.updateNeeded(context.Background(), solr.Document{
		"file_path": "/photos/img.jpg",
	}, zerolog.Nop())
	assert.Error(t, err)
	assert.True(t, needed)
}
