/*
Copyright 2026 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package archive reads and writes gzipped tarballs.
package archive

import (
	"archive/tar"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	gzip "github.com/klauspost/pgzip"
	"github.com/pkg/errors"
)

// Writer writes a gzipped tarball to a file. If any write fails the partial
// file is removed on Close.
type Writer struct {
	filename string
	file     *os.File
	zipper   *gzip.Writer
	tw       *tar.Writer
	failed   bool
	closed   bool
}

// Create opens filename for writing, creating its parent directory.
func Create(filename string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, errors.Wrapf(err, "creating directory for %s", filename)
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	zipper := gzip.NewWriter(f)
	return &Writer{
		filename: filename,
		file:     f,
		zipper:   zipper,
		tw:       tar.NewWriter(zipper),
	}, nil
}

// Name is the path of the archive being written.
func (w *Writer) Name() string {
	return w.filename
}

// AddBytes writes a single file with body as its content.
func (w *Writer) AddBytes(name string, body []byte) error {
	h := &tar.Header{
		Name:    filepath.ToSlash(name),
		Mode:    0644,
		Size:    int64(len(body)),
		ModTime: time.Now(),
	}
	if err := w.tw.WriteHeader(h); err != nil {
		w.failed = true
		return errors.Wrapf(err, "writing header for %s", name)
	}
	if _, err := w.tw.Write(body); err != nil {
		w.failed = true
		return errors.Wrapf(err, "writing %s", name)
	}
	return nil
}

// AddFile copies the file at src into the archive as name.
func (w *Writer) AddFile(name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		w.failed = true
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		w.failed = true
		return err
	}
	h := &tar.Header{
		Name:    filepath.ToSlash(name),
		Mode:    int64(fi.Mode().Perm()),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}
	if err := w.tw.WriteHeader(h); err != nil {
		w.failed = true
		return errors.Wrapf(err, "writing header for %s", name)
	}
	if _, err := io.Copy(w.tw, f); err != nil {
		w.failed = true
		return errors.Wrapf(err, "copying %s", src)
	}
	return nil
}

// AddDir adds every regular file below dir, prefixing the archive names
// with prefix.
func (w *Writer) AddDir(prefix, dir string) error {
	return filepath.Walk(dir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		return w.AddFile(path.Join(prefix, filepath.ToSlash(rel)), p)
	})
}

// Abort marks the archive as failed so Close removes it.
func (w *Writer) Abort() {
	w.failed = true
}

// Close flushes the archive. A failed archive is deleted.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	errs := []error{w.tw.Close(), w.zipper.Close(), w.file.Close()}
	if w.failed {
		os.Remove(w.filename)
		return nil
	}
	for _, err := range errs {
		if err != nil {
			os.Remove(w.filename)
			return errors.Wrapf(err, "closing %s", w.filename)
		}
	}
	return nil
}

// WalkFunc is called for every regular file in an archive.
type WalkFunc func(name string, size int64, r io.Reader) error

// Walk calls fn for every regular file in the archive at filename.
func Walk(filename string, fn WalkFunc) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	unzipped, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "%s does not appear to be a gzipped archive", filename)
	}
	defer unzipped.Close()

	tr := tar.NewReader(unzipped)
	for {
		hd, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "reading %s", filename)
		}
		if hd.Typeflag != tar.TypeReg {
			continue
		}
		name, err := cleanName(hd.Name)
		if err != nil {
			return err
		}
		if err := fn(name, hd.Size, tr); err != nil {
			return err
		}
	}
}

// Extract unpacks the archive at filename below dest.
func Extract(filename, dest string) error {
	return Walk(filename, func(name string, _ int64, r io.Reader) error {
		target := filepath.Join(dest, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, r); err != nil {
			out.Close()
			return errors.Wrapf(err, "extracting %s", name)
		}
		return out.Close()
	})
}

// cleanName rejects absolute names and names escaping the archive root.
func cleanName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	cleaned := path.Clean("/" + name)
	if strings.HasPrefix(name, "/") || strings.Contains(name, "../") || name == ".." || strings.HasSuffix(name, "/..") {
		return "", errors.Errorf("illegal path in archive: %s", name)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}
