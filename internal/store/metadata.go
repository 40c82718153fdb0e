package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// maxRecordLine bounds a single metadata line when reading.
const maxRecordLine = 16 * 1024 * 1024

// MetadataWriter appends records to a JSONL metadata log. Every Append is
// flushed to the file before it returns.
type MetadataWriter struct {
	mu    sync.Mutex
	f     *os.File
	w     *bufio.Writer
	enc   *json.Encoder
	count int
}

// CreateMetadata truncates or creates the log at path.
func CreateMetadata(path string) (*MetadataWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata log: %w", err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &MetadataWriter{f: f, w: w, enc: enc}, nil
}

// Append writes one line per record and flushes.
func (m *MetadataWriter) Append(records ...Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return fmt.Errorf("metadata log is closed")
	}
	for _, r := range records {
		if err := m.enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}
	if err := m.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush metadata log: %w", err)
	}
	m.count += len(records)
	return nil
}

// Count returns the number of records appended so far.
func (m *MetadataWriter) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Close flushes and closes the log. Closing twice is a no-op.
func (m *MetadataWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return nil
	}
	flushErr := m.w.Flush()
	closeErr := m.f.Close()
	m.f = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// ReadMetadata loads every record from the log in order. Blank lines are
// skipped.
func ReadMetadata(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var records []Record
	err = scanLines(f, func(n int, line []byte) error {
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			return fmt.Errorf("%s line %d: %w", path, n, err)
		}
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CountMetadata counts non-blank lines without decoding them.
func CountMetadata(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	count := 0
	err = scanLines(f, func(int, []byte) error {
		count++
		return nil
	})
	return count, err
}

func scanLines(r io.Reader, fn func(n int, line []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxRecordLine)
	n := 0
	for sc.Scan() {
		n++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	return sc.Err()
}
