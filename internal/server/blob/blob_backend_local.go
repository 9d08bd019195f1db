package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bundlesync/bundlesync/internal/checksum"
	"github.com/bundlesync/bundlesync/internal/utils"
	lru "github.com/hashicorp/golang-lru/v2"
)

const etagCacheSize = 8192

type etagEntry struct {
	size    int64
	modTime time.Time
	etag    string
}

// LocalBackend serves objects from a directory, typically the build output root
type LocalBackend struct {
	root  string
	etags *lru.Cache[string, etagEntry]
}

var _ Backend = (*LocalBackend)(nil)

func NewLocalBackend(root string) (*LocalBackend, error) {
	if err := utils.EnsureDir(root); err != nil {
		return nil, fmt.Errorf("blob root: %w", err)
	}

	etags, err := lru.New[string, etagEntry](etagCacheSize)
	if err != nil {
		return nil, err
	}

	return &LocalBackend{root: filepath.Clean(root), etags: etags}, nil
}

func (b *LocalBackend) Root() string {
	return b.root
}

func (b *LocalBackend) path(key string) (string, error) {
	if !ValidateKey(key) {
		return "", ErrInvalidKey
	}
	p, err := utils.LocalPath(b.root, key)
	if err != nil {
		return "", ErrInvalidKey
	}
	return p, nil
}

// etag hashes a file once per size and mtime
func (b *LocalBackend) etag(key, p string, info fs.FileInfo) (string, error) {
	if e, ok := b.etags.Get(key); ok && e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
		return e.etag, nil
	}

	digest := checksum.FileDigest(p)
	if digest == "" {
		return "", fmt.Errorf("hash %s: unreadable", key)
	}
	b.etags.Add(key, etagEntry{size: info.Size(), modTime: info.ModTime(), etag: digest})
	return digest, nil
}

func (b *LocalBackend) GetObject(ctx context.Context, key string) (*GetObjectResponse, error) {
	info, err := b.HeadObject(ctx, key)
	if err != nil {
		return nil, err
	}

	p, _ := b.path(key)
	f, err := os.Open(p)
	if err != nil {
		return nil, mapFSError(err)
	}

	modTime, _ := time.Parse(time.RFC3339, info.LastModified)
	return &GetObjectResponse{
		Body:         f,
		ETag:         info.ETag,
		Size:         info.Size,
		LastModified: modTime,
	}, nil
}

func (b *LocalBackend) HeadObject(ctx context.Context, key string) (*BlobInfo, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(p)
	if err != nil {
		return nil, mapFSError(err)
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	etag, err := b.etag(key, p, info)
	if err != nil {
		return nil, err
	}

	return &BlobInfo{
		Key:          key,
		ETag:         etag,
		Size:         info.Size(),
		LastModified: info.ModTime().UTC().Format(time.RFC3339),
	}, nil
}

// PutObject writes through a temp file so readers never see a partial object
func (b *LocalBackend) PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error) {
	p, err := b.path(params.Key)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureParent(p); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	digest := checksum.Digest(io.TeeReader(params.Body, tmp))
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if digest == "" {
		return nil, fmt.Errorf("put %s: read body failed", params.Key)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return nil, err
	}

	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if params.Size > 0 && info.Size() != params.Size {
		return nil, fmt.Errorf("put %s: wrote %d bytes, expected %d", params.Key, info.Size(), params.Size)
	}
	b.etags.Add(params.Key, etagEntry{size: info.Size(), modTime: info.ModTime(), etag: digest})

	return &PutObjectResponse{
		Key:          params.Key,
		ETag:         digest,
		Size:         info.Size(),
		LastModified: info.ModTime().UTC(),
	}, nil
}

func (b *LocalBackend) DeleteObject(ctx context.Context, key string) (bool, error) {
	p, err := b.path(key)
	if err != nil {
		return false, err
	}

	b.etags.Remove(key)
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *LocalBackend) ListObjects(ctx context.Context, prefix string) ([]*BlobInfo, error) {
	var objects []*BlobInfo

	err := filepath.WalkDir(b.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}

		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := b.HeadObject(ctx, key)
		if errors.Is(err, ErrInvalidKey) {
			return nil
		} else if err != nil {
			return err
		}
		objects = append(objects, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

func mapFSError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
