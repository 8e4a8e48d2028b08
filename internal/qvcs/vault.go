package qvcs

import (
	"context"
	"io"
)

// Vault is the blob storage backend for revision content and database
// snapshots. All operations stream through io.Reader/io.Writer.
type Vault interface {
	// PutContent stores a blob under key. Storing the same key twice is safe.
	// size is the number of bytes that will be read from r.
	PutContent(ctx context.Context, key string, r io.Reader, size int64) error

	// GetContent writes the blob stored under key to w. A missing key yields
	// an error wrapping ErrNotFound.
	GetContent(ctx context.Context, key string, w io.Writer) error

	// HasContent reports whether a blob is stored under key.
	HasContent(ctx context.Context, key string) (bool, error)

	// PutMetadata stores a named metadata item (e.g. "db") along with a version.
	PutMetadata(ctx context.Context, name string, r io.Reader, size int64, version int64) error

	// GetMetadataVersion returns the stored version of a metadata item, 0 if absent.
	GetMetadataVersion(ctx context.Context, name string) (int64, error)

	// ValidateSetup verifies that the vault is accessible.
	ValidateSetup(ctx context.Context) error
}

// ContentArchive stores and retrieves revision content by content id.
type ContentArchive interface {
	// Put stores the content read from r and returns its content id and size.
	Put(ctx context.Context, r io.Reader) (contentID string, size int64, err error)

	// Get writes the content for contentID to w.
	Get(ctx context.Context, contentID string, w io.Writer) error
}
