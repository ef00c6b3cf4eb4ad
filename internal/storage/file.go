package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/AngiE300512/just-ease/internal/errs"
)

// FileBackend stores blobs under a root directory, one file per path.
type FileBackend struct {
	root string
	log  *zap.Logger
}

// NewFileBackend creates root if needed.
func NewFileBackend(root string, log *zap.Logger) (*FileBackend, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: file backend root is empty", errs.ErrValidation)
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FileBackend{root: root, log: log}, nil
}

// Put writes data atomically: a temp file in the target directory is renamed into place.
func (b *FileBackend) Put(ctx context.Context, ref string, data []byte, _ string) error {
	p, err := b.path(ref)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".blob-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, p); err != nil {
		os.Remove(name)
		return fmt.Errorf("commit blob: %w", err)
	}
	b.log.Debug("blob stored", zap.String("backend", b.Name()), zap.String("ref", ref), zap.Int("size", len(data)))
	return nil
}

// Get reads the blob at ref.
func (b *FileBackend) Get(ctx context.Context, ref string) ([]byte, error) {
	p, err := b.path(ref)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Delete removes the blob at ref.
func (b *FileBackend) Delete(ctx context.Context, ref string) error {
	p, err := b.path(ref)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errs.ErrNotFound
		}
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// Name identifies the backend in logs.
func (b *FileBackend) Name() string { return "file-" + filepath.Base(b.root) }

func (b *FileBackend) path(ref string) (string, error) {
	c, err := cleanRef(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.root, filepath.FromSlash(c)), nil
}
