package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"csv_stream_backend/pkg/errs"
)

// LocalBackend keeps results under a single root directory.
type LocalBackend struct {
	root string
}

func NewLocalBackend(root string) (*LocalBackend, error) {
	if root == "" {
		return nil, fmt.Errorf("local storage root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalBackend{root: abs}, nil
}

func (b *LocalBackend) Kind() string { return TypeLocal }

func (b *LocalBackend) Root() string { return b.root }

// resolve maps a logical path under root and rejects anything that escapes it.
func (b *LocalBackend) resolve(logicalPath string) (string, error) {
	if logicalPath == "" {
		return "", errs.Wrap(errs.ErrPathOutsideRoot, errs.CodeInvalidInput, "LocalBackend.resolve", "empty path")
	}
	full := filepath.Join(b.root, filepath.FromSlash(logicalPath))
	rel, err := filepath.Rel(b.root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errs.Wrapf(errs.ErrPathOutsideRoot, errs.CodeInvalidInput, "LocalBackend.resolve", "path %q", logicalPath)
	}
	return full, nil
}

func (b *LocalBackend) Save(ctx context.Context, logicalPath string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := b.resolve(logicalPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", errs.Wrap(err, errs.CodeStorage, "LocalBackend.Save", "create directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return "", errs.Wrap(err, errs.CodeStorage, "LocalBackend.Save", "create temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", errs.Wrap(err, errs.CodeStorage, "LocalBackend.Save", "write file")
	}
	if err := tmp.Close(); err != nil {
		return "", errs.Wrap(err, errs.CodeStorage, "LocalBackend.Save", "close file")
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", errs.Wrap(err, errs.CodeStorage, "LocalBackend.Save", "rename file")
	}
	return full, nil
}

func (b *LocalBackend) Exists(ctx context.Context, logicalPath string) (bool, error) {
	full, err := b.resolve(logicalPath)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errs.Wrap(err, errs.CodeStorage, "LocalBackend.Exists", "stat file")
	}
	return !info.IsDir(), nil
}

// URLFor returns the absolute file path; local results are served by the gateway.
func (b *LocalBackend) URLFor(ctx context.Context, logicalPath string) (string, error) {
	return b.resolve(logicalPath)
}
