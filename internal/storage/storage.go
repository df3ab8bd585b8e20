// Package storage provides blob storage for uploaded documents and rendered
// page images. It defines a System interface and includes a filesystem
// implementation suitable for development and single-node deployments.
package storage

import (
	"context"
	"errors"
)

// Storage errors returned by System implementations.
var (
	// ErrNotFound indicates the requested key does not exist in storage.
	ErrNotFound = errors.New("storage: key not found")

	// ErrPermissionDenied indicates insufficient permissions to access the key.
	ErrPermissionDenied = errors.New("storage: permission denied")

	// ErrInvalidKey indicates the key is malformed or contains invalid characters.
	// This includes empty keys and path traversal attempts.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// System defines the storage operations interface for blob storage.
// Implementations handle the underlying storage mechanism while providing
// a consistent API for storing and retrieving binary data.
type System interface {
	// Store saves data at the specified key. If the key already exists,
	// its contents are overwritten. Parent directories are created as needed.
	Store(ctx context.Context, key string, data []byte) error

	// Retrieve returns the data stored at the specified key.
	// Returns ErrNotFound if the key does not exist.
	Retrieve(ctx context.Context, key string) ([]byte, error)

	// Delete deletes the data at the specified key.
	// Returns nil if the key does not exist (idempotent).
	Delete(ctx context.Context, key string) error

	// DeletePrefix deletes every blob stored under the given key prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Path resolves a key to an absolute filesystem path without reading it.
	// Collaborators that operate on files directly (rasterizer, analyzer)
	// use this to avoid copying blob contents through memory.
	Path(ctx context.Context, key string) (string, error)

	// Validate checks if a key exists and is accessible.
	Validate(ctx context.Context, key string) (bool, error)
}
