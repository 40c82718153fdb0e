package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultMaxFileSize is the largest file TextLoader reads (50MB).
const DefaultMaxFileSize = 50 * 1024 * 1024

// DefaultExtensions are the file types TextLoader accepts.
var DefaultExtensions = []string{
	".txt", ".text", ".md", ".markdown", ".rst", ".adoc",
	".csv", ".tsv", ".log", ".json", ".jsonl", ".yaml", ".yml",
	".toml", ".ini", ".html", ".htm", ".xml", ".tex",
}

// TextLoader reads UTF-8 text files. A form feed starts a new page.
type TextLoader struct {
	MaxFileSize int64
}

// NewTextLoader returns a TextLoader with the default size cap.
func NewTextLoader() *TextLoader {
	return &TextLoader{MaxFileSize: DefaultMaxFileSize}
}

// Load implements Loader.
func (l *TextLoader) Load(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	limit := l.MaxFileSize
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%s exceeds %d bytes", filepath.Base(path), limit)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return nil, fmt.Errorf("%s looks binary", filepath.Base(path))
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("�"))
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.Split(text, "\f"), nil
}

// Supports reports whether ext (with dot) is in DefaultExtensions.
func Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range DefaultExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
