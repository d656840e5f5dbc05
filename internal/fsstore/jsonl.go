package fsstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONLWriter appends one JSON document per line, used for the outbound
// activity log. Writes are flushed eagerly so a crash loses at most the
// in-flight record.
type JSONLWriter struct {
	path string
	opts FileOptions

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	closed bool
}

func NewJSONLWriter(path string, opts FileOptions) (*JSONLWriter, error) {
	normalizedPath, err := normalizePath(path)
	if err != nil {
		return nil, err
	}
	opts = normalizeFileOptions(opts)
	if err := EnsureDir(filepath.Dir(normalizedPath), opts.DirPerm); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(normalizedPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, opts.FilePerm)
	if err != nil {
		return nil, err
	}
	return &JSONLWriter{
		path:   normalizedPath,
		opts:   opts,
		file:   file,
		writer: bufio.NewWriterSize(file, 16*1024),
	}, nil
}

func (w *JSONLWriter) AppendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: jsonl encode %s: %v", ErrEncodeFailed, w.path, err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("jsonl writer closed")
	}
	if _, err := w.writer.Write(data); err != nil {
		return err
	}
	return w.writer.Flush()
}

func (w *JSONLWriter) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.writer != nil {
		_ = w.writer.Flush()
	}
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		w.writer = nil
		return err
	}
	return nil
}
