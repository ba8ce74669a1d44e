// Package artifact archives corrected count tables in a blob store.
//
// The Store interface is a thin S3-like surface with filesystem, S3 and
// in-memory drivers. Open selects a driver from the [storage] configuration;
// the "none" driver disables archiving and yields a nil Store.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"biomtype/internal/config"
)

// Driver identifies a storage backend.
type Driver string

const (
	DriverFilesystem Driver = config.StorageFS
	DriverS3         Driver = config.StorageS3
	DriverMemory     Driver = config.StorageMemory
)

var (
	// ErrExists is returned by Put when the key is already taken.
	ErrExists = errors.New("artifact already exists")
	// ErrNotFound is returned when a key has no stored object.
	ErrNotFound = errors.New("artifact not found")
)

// PutOptions carries optional object attributes.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored object.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is implemented by every driver. Put is create-only.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// Open builds the store selected by cfg. It returns (nil, nil) when archiving
// is disabled.
func Open(ctx context.Context, cfg config.Storage) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", config.StorageNone:
		return nil, nil
	case config.StorageFS:
		return NewFilesystem(cfg.FSRoot)
	case config.StorageMemory:
		return NewMemory(), nil
	case config.StorageS3:
		return NewS3(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			PathStyle:       cfg.S3UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// TableKey returns the archive key of a corrected table for a job run.
func TableKey(jobID, requestID, tablePath string) string {
	return path.Join("tables", sanitizeSegment(jobID), sanitizeSegment(requestID), sanitizeSegment(baseName(tablePath)))
}

// PutFile archives the file at filePath under key.
func PutFile(ctx context.Context, store Store, key, filePath string, opts PutOptions) (Info, error) {
	if store == nil {
		return Info{}, errors.New("artifact store is nil")
	}
	file, err := os.Open(filePath)
	if err != nil {
		return Info{}, fmt.Errorf("open %s: %w", filePath, err)
	}
	defer file.Close()
	info, err := store.Put(ctx, key, file, opts)
	if err != nil {
		return Info{}, fmt.Errorf("archive %s: %w", key, err)
	}
	return info, nil
}

func sanitizeSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || value == "." || value == ".." {
		return "_"
	}
	return strings.NewReplacer("/", "_", "\\", "_").Replace(value)
}

func baseName(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return path.Base(p)
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
