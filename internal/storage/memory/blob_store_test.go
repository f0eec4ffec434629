package memory

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/rupat-crawler/internal/storage"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore(false)
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "path/page.html", "text/html", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "memory://path/page.html", uri)

	payload[0] = 'C'
	obj, ok := store.Get("path/page.html")
	require.True(t, ok)
	assert.Equal(t, "content", string(obj.Data))
	assert.Equal(t, "text/html", obj.ContentType)

	obj.Data[0] = 'X'
	again, _ := store.Get("path/page.html")
	assert.Equal(t, "content", string(again.Data), "Get returns a copy")
}

func TestBlobStoreNoClobber(t *testing.T) {
	t.Parallel()

	store := NewBlobStore(true)
	_, err := store.PutObject(context.Background(), "a.csv", "text/csv", strings.NewReader("1"))
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "a.csv", "text/csv", strings.NewReader("2"))
	require.ErrorIs(t, err, storage.ErrObjectExists)

	obj, _ := store.Get("a.csv")
	assert.Equal(t, "1", string(obj.Data))
}

func TestBlobStorePaths(t *testing.T) {
	t.Parallel()

	store := NewBlobStore(false)
	for _, p := range []string{"b", "a", "c"} {
		_, err := store.PutObject(context.Background(), p, "", strings.NewReader(p))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c"}, store.Paths())

	_, ok := store.Get("missing")
	assert.False(t, ok)
}
