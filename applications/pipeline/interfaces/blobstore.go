package interfaces

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by Head when no object exists at the key.
// Any other Head error must be treated as infrastructure trouble.
var ErrObjectNotFound = errors.New("object not found")

type BlobStore interface {
	// Head checks existence of an object. Returns nil when the object
	// exists and an error wrapping ErrObjectNotFound when it does not.
	Head(ctx context.Context, bucket, key string) error
	// Get reads the full object body and its declared content length.
	Get(ctx context.Context, bucket, key string) ([]byte, int64, error)
	// Put writes an object with the given content type.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}
