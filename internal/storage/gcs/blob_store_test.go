package gcs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.ErrorContains(t, err, "client")

	_, err = New(&storage.Client{}, Config{})
	require.ErrorContains(t, err, "bucket")
}

func TestObjectNaming(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix string
		name   string
		want   string
	}{
		{"", "rupat_table_2024-03-01_12.csv", "rupat_table_2024-03-01_12.csv"},
		{"exports", "rupat_table_2024-03-01_12.csv", "exports/rupat_table_2024-03-01_12.csv"},
		{"/exports/rupat/", "/pages/7/abc.html", "exports/rupat/pages/7/abc.html"},
	}
	for _, tc := range tests {
		store, err := New(&storage.Client{}, Config{Bucket: "registry", Prefix: tc.prefix})
		require.NoError(t, err)
		got := store.objectName(tc.name)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, "gs://registry/"+tc.want, store.uri(got))
	}
}

func TestIsPreconditionFailed(t *testing.T) {
	t.Parallel()

	assert.True(t, isPreconditionFailed(fmt.Errorf("close: %w", &googleapi.Error{Code: http.StatusPreconditionFailed})))
	assert.False(t, isPreconditionFailed(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isPreconditionFailed(errors.New("boom")))
}
