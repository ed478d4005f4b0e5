// Package storage keeps uploaded attachment bytes on local disk under
// content-addressed paths.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// ErrTooLarge is returned when an upload exceeds the allowed size.
var ErrTooLarge = errors.New("file exceeds maximum size")

// ErrInvalidPath is returned for paths that escape the storage root.
var ErrInvalidPath = errors.New("invalid storage path")

// Object describes stored content.
type Object struct {
	Path     string
	Size     int64
	Checksum string
}

// Store persists attachment content.
type Store interface {
	Save(ctx context.Context, r io.Reader, maxBytes int64) (Object, error)
	Open(path string) (*os.File, error)
}

// LocalStore writes files below a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates root if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("storage root required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &LocalStore{root: abs}, nil
}

// Save streams r to disk, hashing it with BLAKE3. Identical content shares a path.
func (s *LocalStore) Save(ctx context.Context, r io.Reader, maxBytes int64) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	hasher := blake3.New()
	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	size, err := io.Copy(io.MultiWriter(tmp, hasher), src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Object{}, fmt.Errorf("write upload: %w", err)
	}
	if maxBytes > 0 && size > maxBytes {
		return Object{}, ErrTooLarge
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	rel := filepath.Join(sum[:2], sum[2:4], sum)
	dst := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return Object{}, fmt.Errorf("create shard dir: %w", err)
	}
	if _, err := os.Stat(dst); err == nil {
		return Object{Path: filepath.ToSlash(rel), Size: size, Checksum: sum}, nil
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return Object{}, fmt.Errorf("commit upload: %w", err)
	}
	committed = true
	return Object{Path: filepath.ToSlash(rel), Size: size, Checksum: sum}, nil
}

// Open returns the stored file at a path previously returned by Save.
func (s *LocalStore) Open(path string) (*os.File, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (s *LocalStore) resolve(path string) (string, error) {
	if path == "" || filepath.IsAbs(path) {
		return "", ErrInvalidPath
	}
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return full, nil
}

// Ping reports whether the storage root is still a writable directory.
func (s *LocalStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("storage root not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
