// Package storage holds what the blob store backends have in common. Each
// backend (local filesystem, memory, Google Cloud Storage) lives in its own
// subpackage and satisfies crawler.BlobStore.
package storage

import "errors"

// ErrObjectExists is returned by stores configured to refuse overwrites when
// the target object is already present.
var ErrObjectExists = errors.New("object already exists")
