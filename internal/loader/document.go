// Package loader turns files on disk into documents made of page texts.
//
// Rich formats (PDF, DOCX) need an external extractor; the built-in
// TextLoader handles UTF-8 text files and treats form feeds as page breaks.
package loader

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Document is a source file prepared for indexing.
type Document struct {
	// ID is sha1(path|mtime) so an edited file gets a new identity.
	ID      string
	Name    string
	Path    string // absolute
	ModTime time.Time
	Pages   []string
}

// Loader extracts the ordered page texts of one file.
type Loader interface {
	Load(ctx context.Context, path string) ([]string, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, path string) ([]string, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, path string) ([]string, error) {
	return f(ctx, path)
}

// DocumentID derives the stable document identity from path and mtime.
func DocumentID(path string, modTime time.Time) string {
	sum := sha1.Sum([]byte(path + "|" + strconv.FormatInt(modTime.Unix(), 10)))
	return hex.EncodeToString(sum[:])
}

// Open stats path and loads its pages with l.
func Open(ctx context.Context, l Loader, path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	pages, err := l.Load(ctx, abs)
	if err != nil {
		return nil, err
	}

	return &Document{
		ID:      DocumentID(abs, info.ModTime()),
		Name:    filepath.Base(abs),
		Path:    abs,
		ModTime: info.ModTime(),
		Pages:   pages,
	}, nil
}

// Text joins the pages with blank lines.
func (d *Document) Text() string {
	var size int
	for _, p := range d.Pages {
		size += len(p) + 2
	}
	buf := make([]byte, 0, size)
	for i, p := range d.Pages {
		if i > 0 {
			buf = append(buf, '\n', '\n')
		}
		buf = append(buf, p...)
	}
	return string(buf)
}
