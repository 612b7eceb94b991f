package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/catalogreport/internal/fileutil"
	"github.com/Lllllllleong/catalogreport/internal/gcp"
)

// Archive is the stable storage uploads and reports are persisted to. Save
// replaces any existing object in one step: readers see the previous content
// or the new content, never a partial write.
type Archive interface {
	Save(ctx context.Context, name string, data []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	// URI locates name for logs and responses.
	URI(name string) string
}

// LocalArchive stores objects as files under a working directory.
type LocalArchive struct {
	dir string
}

// NewLocalArchive creates dir if needed.
func NewLocalArchive(dir string) (*LocalArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", dir, err)
	}
	return &LocalArchive{dir: dir}, nil
}

func (a *LocalArchive) path(name string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(name))[1:]
	if clean == "" {
		return "", fmt.Errorf("invalid archive name %q", name)
	}
	return filepath.Join(a.dir, filepath.FromSlash(clean)), nil
}

func (a *LocalArchive) Save(_ context.Context, name string, data []byte) error {
	p, err := a.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	return fileutil.WriteAtomic(p, data)
}

func (a *LocalArchive) Load(_ context.Context, name string) ([]byte, error) {
	p, err := a.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func (a *LocalArchive) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(a.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(a.dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			names = append(names, rel)
		}
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (a *LocalArchive) URI(name string) string {
	p, err := a.path(name)
	if err != nil {
		return name
	}
	return p
}

// GCSArchive stores objects in a bucket, optionally under a prefix.
type GCSArchive struct {
	bucket     *storage.BucketHandle
	bucketName string
	prefix     string
}

// NewGCSArchive wraps bucketName. Objects are stored under prefix.
func NewGCSArchive(client *storage.Client, bucketName, prefix string) *GCSArchive {
	return &GCSArchive{
		bucket:     client.Bucket(bucketName),
		bucketName: bucketName,
		prefix:     strings.Trim(prefix, "/"),
	}
}

func (a *GCSArchive) object(name string) string {
	if a.prefix == "" {
		return name
	}
	return a.prefix + "/" + name
}

// Save retries transient failures with exponential backoff.
func (a *GCSArchive) Save(ctx context.Context, name string, data []byte) error {
	const maxRetries = 4
	backoff := 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
		err := gcp.WriteObject(writeCtx, a.bucket, a.object(name), data, false)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		slog.Warn("Upload failed, will retry.",
			"gcsObject", a.object(name),
			"attempt", i+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("upload for %s failed after all retries: %w", a.object(name), lastErr)
}

func (a *GCSArchive) Load(ctx context.Context, name string) ([]byte, error) {
	return gcp.ReadObject(ctx, a.bucket, a.object(name))
}

func (a *GCSArchive) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := gcp.ListObjects(ctx, a.bucket, a.object(prefix))
	if err != nil {
		return nil, err
	}
	if a.prefix != "" {
		for i, n := range names {
			names[i] = strings.TrimPrefix(n, a.prefix+"/")
		}
	}
	return names, nil
}

func (a *GCSArchive) URI(name string) string {
	return fmt.Sprintf("gs://%s/%s", a.bucketName, a.object(name))
}
