package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage implements ObjectStorage on the local filesystem.
// Buckets map to directories under the root, object keys to relative paths.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a filesystem-backed object storage rooted at dir.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create storage root failed: %w", err)
	}
	return &LocalStorage{root: root}, nil
}

func (s *LocalStorage) objectPath(bucket, objectKey string) (string, error) {
	if bucket == "" || objectKey == "" {
		return "", fmt.Errorf("bucket and objectKey are required")
	}
	clean := filepath.Clean(objectKey)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid object key: %s", objectKey)
	}
	return filepath.Join(s.root, bucket, clean), nil
}

func (s *LocalStorage) PutObject(ctx context.Context, bucket, objectKey string, data []byte, contentType string) error {
	path, err := s.objectPath(bucket, objectKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create object dir failed: %w", err)
	}
	// Write-then-rename keeps readers from seeing partial objects.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write object failed: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename object failed: %w", err)
	}
	return nil
}

func (s *LocalStorage) GetObject(ctx context.Context, bucket, objectKey string) ([]byte, error) {
	path, err := s.objectPath(bucket, objectKey)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("read object failed: %w", err)
	}
	return data, nil
}

func (s *LocalStorage) StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error) {
	path, err := s.objectPath(bucket, objectKey)
	if err != nil {
		return ObjectStat{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ObjectStat{}, ErrObjectNotFound
		}
		return ObjectStat{}, fmt.Errorf("stat object failed: %w", err)
	}
	return ObjectStat{SizeBytes: info.Size()}, nil
}

func (s *LocalStorage) RemoveObject(ctx context.Context, bucket, objectKey string) error {
	path, err := s.objectPath(bucket, objectKey)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove object failed: %w", err)
	}
	return nil
}
