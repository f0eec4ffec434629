package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockBlobStore is a testify mock satisfying crawler.BlobStore. The body is
// read and passed to Called as a string so expectations can match on it.
type MockBlobStore struct {
	mock.Mock
}

// PutObject records the call and returns the configured URI and error.
func (m *MockBlobStore) PutObject(ctx context.Context, path string, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	args := m.Called(ctx, path, contentType, string(data))
	return args.String(0), args.Error(1) //nolint:wrapcheck
}
