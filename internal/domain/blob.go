package domain

import (
	"context"
	"time"
)

// FileInfo describes a stored file.
type FileInfo struct {
	Name         string
	Size         int64
	LastModified time.Time
}

// FileStore is the byte-level persistence layer behind store and meta files.
// Read returns ErrNotFound when the file does not exist.
type FileStore interface {
	Exists(ctx context.Context, name string) (bool, error)
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	List(ctx context.Context, prefix string) ([]FileInfo, error)
}
