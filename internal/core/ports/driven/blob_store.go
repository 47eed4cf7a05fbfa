package driven

import "context"

// BlobStore places bytes at a logical path. Paths are backend-neutral
// (see domain.NormalizeLogicalPath); callers never branch on the backend.
//
// Errors: domain.ErrNotFound when the key does not exist,
// domain.ErrStorageUnavailable (wrapped) for backend failures.
type BlobStore interface {
	// Put writes data at path, replacing any existing object
	Put(ctx context.Context, path string, data []byte) error

	// Get reads the bytes stored at path
	Get(ctx context.Context, path string) ([]byte, error)

	// Delete removes the object at path. Returns domain.ErrNotFound if it never existed.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an object is stored at path
	Exists(ctx context.Context, path string) (bool, error)

	// Backend names the implementation ("local" or "minio")
	Backend() string

	// Ping checks the backend is reachable
	Ping(ctx context.Context) error
}
