package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
	"github.com/klauspost/compress/gzip"
)

// File stores the document at a local path. Paths ending in .gz are gzip
// compressed.
type File struct {
	path     string
	compress bool
}

func NewFile(path string) *File {
	return &File{
		path:     path,
		compress: strings.HasSuffix(path, ".gz"),
	}
}

func (f *File) String() string {
	return f.path
}

// Path returns the document path
func (f *File) Path() string {
	return f.path
}

func (f *File) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if oserror.IsNotExist(err) {
			return nil, errors.Mark(errors.Wrapf(err, "read %s", f.path), ErrNotExist)
		}
		return nil, Transient(errors.Wrapf(err, "read %s", f.path))
	}
	if !f.compress {
		return data, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "decompress %s", f.path)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrapf(err, "decompress %s", f.path)
	}
	return out, nil
}

// Write replaces the document by writing a temporary file in the same
// directory and renaming it over the target.
func (f *File) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Transient(errors.Wrapf(err, "create directory %s", dir))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return Transient(errors.Wrapf(err, "create temporary file in %s", dir))
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := f.writeTo(tmp, data); err != nil {
		_ = tmp.Close()
		return Transient(errors.Wrapf(err, "write %s", tmpPath))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return Transient(errors.Wrapf(err, "sync %s", tmpPath))
	}
	if err := tmp.Close(); err != nil {
		return Transient(errors.Wrapf(err, "close %s", tmpPath))
	}

	// Give up before the rename if the caller's deadline already passed.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return Transient(errors.Wrapf(err, "replace %s", f.path))
	}
	committed = true
	return nil
}

func (f *File) writeTo(w io.Writer, data []byte) error {
	if !f.compress {
		_, err := w.Write(data)
		return err
	}
	zw := gzip.NewWriter(w)
	if _, err := zw.Write(data); err != nil {
		return err
	}
	return zw.Close()
}
