package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// ErrNotExist is returned by Get and Stat for a missing key.
var ErrNotExist = errors.New("object does not exist")

type Info struct {
	Key  string
	Size int64
}

// ObjectStore is the blob backend for archives and scan images.
// Keys are slash separated; Delete and List work on key prefixes.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (Info, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Rename(ctx context.Context, from, to string) error
	Delete(ctx context.Context, prefix string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func PutBytes(ctx context.Context, s ObjectStore, key string, b []byte) error {
	return s.Put(ctx, key, bytes.NewReader(b))
}

func ReadAll(ctx context.Context, s ObjectStore, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Key joins parts into a clean object key.
func Key(parts ...string) string {
	return strings.TrimPrefix(path.Join(parts...), "/")
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".pdf":
		return "application/pdf"
	case ".json":
		return "application/json"
	case ".zip":
		return "application/zip"
	default:
		return ""
	}
}
