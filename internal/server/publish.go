package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bundlesync/bundlesync/internal/checksum"
	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/bundlesync/bundlesync/internal/server/blob"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

const DefaultPublishConcurrency = 4

var (
	ErrNotPublished = errors.New("distribution root has no version tag")
	ErrTagMismatch  = errors.New("version tag does not match its manifest")
)

type PublishOptions struct {
	Concurrency int
	// Force uploads objects even when the backend already holds the same content
	Force bool
}

type PublishResult struct {
	Tag      manifest.VersionTag `json:"tag"`
	Uploaded []string            `json:"uploaded"`
	Skipped  []string            `json:"skipped"`
	Bytes    int64               `json:"bytes"`
}

// Publish uploads the distribution root dir under `{platform}/`. Content goes first,
// then the manifests, and the version tag last, so clients polling the tag never
// see a release whose files are not there yet.
func Publish(ctx context.Context, backend blob.Backend, dir, platform string, opts *PublishOptions) (*PublishResult, error) {
	if opts == nil {
		opts = &PublishOptions{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultPublishConcurrency
	}

	tag, err := checkRoot(dir)
	if err != nil {
		return nil, err
	}

	var content, fileLists []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && d.Name() == manifest.BundledDirName {
				// the inner store is shipped with the application, not served
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		switch _, isFileList := manifest.VersionFromFileListName(name); {
		case name == manifest.VersionFileName:
		case isFileList:
			fileLists = append(fileLists, name)
		default:
			content = append(content, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("publish: scan %s: %w", dir, err)
	}
	sort.Strings(content)
	sort.Strings(fileLists)

	res := &PublishResult{Tag: tag, Uploaded: []string{}, Skipped: []string{}}
	p := &publisher{backend: backend, dir: dir, platform: platform, opts: opts, result: res}

	for _, batch := range [][]string{content, fileLists, {manifest.VersionFileName}} {
		if err := p.upload(ctx, batch); err != nil {
			return res, err
		}
	}
	sort.Strings(res.Uploaded)
	sort.Strings(res.Skipped)

	slog.Info("publish", "platform", platform, "tag", tag.Short(), "uploaded", len(res.Uploaded), "skipped", len(res.Skipped), "bytes", humanize.Bytes(uint64(res.Bytes)))
	return res, nil
}

// checkRoot returns the tag of dir after verifying it names a manifest with the same digest
func checkRoot(dir string) (manifest.VersionTag, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifest.VersionFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("publish: %w: %s", ErrNotPublished, dir)
		}
		return "", err
	}
	tag := manifest.ParseVersionTag(string(data))
	if tag.IsZero() {
		return "", fmt.Errorf("publish: %w: %s", ErrNotPublished, dir)
	}

	digest := checksum.FileDigest(filepath.Join(dir, manifest.RemoteFileListName(tag.Version())))
	if !checksum.Match(digest, tag.Digest()) {
		return "", fmt.Errorf("publish: %w: %s", ErrTagMismatch, tag)
	}
	return tag, nil
}

type publisher struct {
	backend  blob.Backend
	dir      string
	platform string
	opts     *PublishOptions

	mu     sync.Mutex
	result *PublishResult
}

func (p *publisher) upload(ctx context.Context, names []string) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.opts.Concurrency)

	for _, name := range names {
		eg.Go(func() error {
			return p.uploadOne(egCtx, name)
		})
	}
	return eg.Wait()
}

func (p *publisher) uploadOne(ctx context.Context, name string) error {
	local := filepath.Join(p.dir, filepath.FromSlash(name))
	key := blob.Key(p.platform, name)

	if !p.opts.Force {
		if info, err := p.backend.HeadObject(ctx, key); err == nil && checksum.Match(info.ETag, checksum.FileDigest(local)) {
			p.record(name, 0, false)
			return nil
		} else if err != nil && !errors.Is(err, blob.ErrNotFound) {
			return fmt.Errorf("publish: head %s: %w", key, err)
		}
	}

	file, err := os.Open(local)
	if err != nil {
		return err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return err
	}

	if _, err := p.backend.PutObject(ctx, &blob.PutObjectParams{Key: key, Size: stat.Size(), Body: file}); err != nil {
		return fmt.Errorf("publish: put %s: %w", key, err)
	}
	slog.Debug("publish upload", "key", key, "size", humanize.Bytes(uint64(stat.Size())))
	p.record(name, stat.Size(), true)
	return nil
}

func (p *publisher) record(name string, size int64, uploaded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if uploaded {
		p.result.Uploaded = append(p.result.Uploaded, name)
		p.result.Bytes += size
	} else {
		p.result.Skipped = append(p.result.Skipped, name)
	}
}
