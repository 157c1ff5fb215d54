package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutObjectStoresCopy(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("<html></html>")

	uri, err := store.PutObject(context.Background(), "google/job-1.html", "text/html", payload)
	require.NoError(t, err)
	assert.Equal(t, "memory://google/job-1.html", uri)

	payload[0] = 'x'
	stored, ok := store.Get("google/job-1.html")
	require.True(t, ok)
	assert.Equal(t, "<html></html>", string(stored))
}

func TestGetMissingPath(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	_, ok := store.Get("nope")
	assert.False(t, ok)
}
