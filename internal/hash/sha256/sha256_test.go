package sha256

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New(0)
	got, err := h.Hash([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", got)

	again, err := h.Hash([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestHasherTruncates(t *testing.T) {
	t.Parallel()

	got, err := New(12).Hash([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d", got)

	full, err := New(500).Hash([]byte("hello world"))
	require.NoError(t, err)
	assert.Len(t, full, 64)
}

func TestHasherEmptyPage(t *testing.T) {
	t.Parallel()

	got, err := New(0).Hash([]byte{})
	require.NoError(t, err)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", got)

	_, err = New(0).Hash(nil)
	require.Error(t, err)
}
