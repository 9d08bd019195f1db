package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrInvalidKey = errors.New("invalid key")
	ErrNotFound   = errors.New("object not found")
)

// Backend stores the published platform roots. Keys are slash separated,
// `{platform}/{name}`, and the ETag of an object is the hex MD5 of its content.
type Backend interface {
	// GetObject opens an object for reading, ErrNotFound if it does not exist
	GetObject(ctx context.Context, key string) (*GetObjectResponse, error)

	// HeadObject returns the metadata of an object without its body
	HeadObject(ctx context.Context, key string) (*BlobInfo, error)

	// PutObject uploads a single object, replacing any previous content
	PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error)

	// DeleteObject removes an object, returns false if there was nothing to remove
	DeleteObject(ctx context.Context, key string) (bool, error)

	// ListObjects returns every object whose key starts with prefix
	ListObjects(ctx context.Context, prefix string) ([]*BlobInfo, error)
}

// ===================================================================================================

type GetObjectResponse struct {
	Body         io.ReadCloser
	ETag         string
	Size         int64
	LastModified time.Time
}

// ===================================================================================================

type PutObjectParams struct {
	Key  string
	Size int64
	Body io.Reader
}

type PutObjectResponse struct {
	Key          string
	Version      string
	ETag         string
	Size         int64
	LastModified time.Time
}

// ===================================================================================================

type BlobInfo struct {
	Key          string `json:"key"`
	ETag         string `json:"etag"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified"`
}
