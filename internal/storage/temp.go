package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// Store holds uploaded media for the lifetime of one analysis request.
type Store interface {
	SaveUpload(file multipart.File, info FileInfo) (string, error)
	Remove(path string) error
}

type TempStore struct {
	basePath string
}

func NewTempStore(basePath string) (*TempStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &TempStore{basePath: basePath}, nil
}

// SaveUpload copies the multipart file to a uuid-named file under the
// store's directory and returns its absolute path.
func (ts *TempStore) SaveUpload(file multipart.File, info FileInfo) (string, error) {
	ext := filepath.Ext(info.Filename)
	if ext == "" {
		ext = extForContentType(info.ContentType)
	}

	fullPath := filepath.Join(ts.basePath, fmt.Sprintf("%s%s", uuid.New().String(), ext))

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to save upload: %w", err)
	}

	return fullPath, nil
}

// Remove deletes a file previously returned by SaveUpload. Paths outside
// the store's directory are rejected.
func (ts *TempStore) Remove(path string) error {
	cleanPath := filepath.Clean(path)
	base, err := filepath.Abs(ts.basePath)
	if err != nil {
		return fmt.Errorf("invalid store path: %w", err)
	}
	abs, err := filepath.Abs(cleanPath)
	if err != nil || !strings.HasPrefix(abs, base+string(os.PathSeparator)) {
		return fmt.Errorf("invalid path")
	}

	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func extForContentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "video/"):
		return ".mp4"
	case strings.HasPrefix(contentType, "audio/"):
		return ".wav"
	default:
		return ".bin"
	}
}
