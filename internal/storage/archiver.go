// Package storage keeps uploaded receipts on local disk.
package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/frahmantamala/expense-claims/internal"
)

var ErrStorageFailure = internal.ErrStorageFailure

// Archiver writes blobs under a flat directory, one file per upload.
type Archiver struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger
	newID  func() string
}

func NewArchiver(fs afero.Fs, dir string, logger *slog.Logger) *Archiver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		fs:     fs,
		dir:    dir,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// NewLocalArchiver stores files on the OS filesystem.
func NewLocalArchiver(dir string, logger *slog.Logger) *Archiver {
	return NewArchiver(afero.NewOsFs(), dir, logger)
}

// Store saves r as "{uuid}_{originalName}" and returns the relative path.
// Any I/O error is reported as ErrStorageFailure and the partial file is removed.
func (a *Archiver) Store(ctx context.Context, r io.Reader, originalName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ErrStorageFailure.WithCause(err)
	}

	name := a.newID() + "_" + sanitizeName(originalName)
	target := path.Join(filepath.ToSlash(a.dir), name)

	if err := a.fs.MkdirAll(a.dir, 0o755); err != nil {
		a.logger.Error("failed to create upload directory", "dir", a.dir, "error", err)
		return "", ErrStorageFailure.WithCause(err)
	}

	f, err := a.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		a.logger.Error("failed to create upload file", "path", target, "error", err)
		return "", ErrStorageFailure.WithCause(err)
	}

	written, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		a.logger.Error("failed to write upload file", "path", target, "error", err)
		if rmErr := a.fs.Remove(target); rmErr != nil {
			a.logger.Warn("failed to remove partial upload", "path", target, "error", rmErr)
		}
		return "", ErrStorageFailure.WithCause(err)
	}

	a.logger.Info("file archived", "path", target, "bytes", written)
	return target, nil
}

// sanitizeName drops any directory part a client put in the file name.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." || name == "" {
		return "file"
	}
	return name
}
