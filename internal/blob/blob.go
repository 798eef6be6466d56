// Package blob stores uploaded objects and hands back public URLs for them.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var ErrInvalidKey = errors.New("invalid_blob_key")

type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// cleanKey accepts slash separated relative keys without dot segments.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", ErrInvalidKey
		}
	}
	return path.Clean(key), nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
