// Package storage abstracts the object store that holds uploaded videos.
// The server never proxies video bytes; clients upload and play back through
// presigned URLs.
package storage

import (
	"context"
	"time"
)

// DefaultURLExpiry is the lifetime of presigned URLs.
const DefaultURLExpiry = time.Hour

// ObjectStore issues presigned URLs for direct client access to objects.
type ObjectStore interface {
	// PresignGet returns a time-limited URL for downloading the object.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	// PresignPut returns a time-limited URL for uploading the object.
	PresignPut(ctx context.Context, key string, contentType string, expiry time.Duration) (string, error)
}
