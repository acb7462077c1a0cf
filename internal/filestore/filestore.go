package filestore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Kind selects the media subdirectory a file is stored under.
type Kind string

const (
	KindImage Kind = "images"
	KindVideo Kind = "videos"
)

// ValidKind reports whether the supplied value names a known media kind.
func ValidKind(kind string) bool {
	switch Kind(kind) {
	case KindImage, KindVideo:
		return true
	}
	return false
}

var (
	// ErrTooLarge is returned when a decoded payload exceeds the size cap.
	ErrTooLarge = errors.New("filestore: payload exceeds size limit")
	// ErrUnsupportedMedia is returned when the sniffed content type does not
	// match the requested kind.
	ErrUnsupportedMedia = errors.New("filestore: unsupported media type")
	// ErrNotFound is returned when the referenced file does not exist.
	ErrNotFound = errors.New("filestore: file not found")
)

// Store persists media payloads and hands back opaque paths.
type Store interface {
	Save(kind Kind, encoded string) (string, error)
	Load(path string) ([]byte, error)
	Remove(path string) error
}

// DiskStore writes media under a root directory, one subdirectory per kind.
type DiskStore struct {
	root     string
	maxBytes int64
}

// NewDiskStore creates the root and per-kind directories. maxBytes of zero
// applies a 25 MiB default.
func NewDiskStore(root string, maxBytes int64) (*DiskStore, error) {
	if root == "" {
		return nil, errors.New("filestore: root directory is required")
	}
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}

	for _, kind := range []Kind{KindImage, KindVideo} {
		if err := os.MkdirAll(filepath.Join(root, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("filestore: create %s dir: %w", kind, err)
		}
	}

	return &DiskStore{root: root, maxBytes: maxBytes}, nil
}

// Save decodes a base64 payload, verifies its sniffed content type against
// the requested kind, and writes it under a random name. The returned path
// is relative to the store root and suitable for persisting on a record.
func (s *DiskStore) Save(kind Kind, encoded string) (string, error) {
	if kind != KindImage && kind != KindVideo {
		return "", fmt.Errorf("filestore: unknown kind %q", kind)
	}

	// Strip an optional data URL prefix before decoding.
	if idx := strings.Index(encoded, ","); idx >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("filestore: decode payload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	ext, err := extensionFor(kind, contentType)
	if err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	relative := filepath.Join(string(kind), name)
	if err := os.WriteFile(filepath.Join(s.root, relative), data, 0o644); err != nil {
		return "", fmt.Errorf("filestore: write file: %w", err)
	}

	return relative, nil
}

// Load reads a previously saved file by its relative path.
func (s *DiskStore) Load(path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("filestore: read file: %w", err)
	}
	return data, nil
}

// Remove deletes a stored file. Removing a missing file is not an error.
func (s *DiskStore) Remove(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("filestore: remove file: %w", err)
	}
	return nil
}

// resolve joins the relative path under the root and rejects traversal out
// of it.
func (s *DiskStore) resolve(path string) (string, error) {
	if path == "" {
		return "", ErrNotFound
	}

	full := filepath.Join(s.root, filepath.Clean("/"+path))
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", ErrNotFound
	}
	return full, nil
}

func extensionFor(kind Kind, contentType string) (string, error) {
	switch kind {
	case KindImage:
		switch contentType {
		case "image/png":
			return ".png", nil
		case "image/jpeg":
			return ".jpg", nil
		case "image/gif":
			return ".gif", nil
		case "image/webp":
			return ".webp", nil
		}
	case KindVideo:
		switch contentType {
		case "video/mp4":
			return ".mp4", nil
		case "video/webm":
			return ".webm", nil
		}
	}
	return "", fmt.Errorf("%w: %s for %s", ErrUnsupportedMedia, contentType, kind)
}
