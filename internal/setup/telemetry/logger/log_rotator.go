package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LogRotator wraps a log file and periodically rewrites it to hold only the
// newest lines.
type LogRotator struct {
	writer   io.Writer
	buffer   *RingBuffer
	filePath string
	mutex    sync.Mutex
}

// DefaultMaxLines is used when a non-positive line cap is given.
const DefaultMaxLines = 10000

// NewLogRotator creates a new LogRotator. The file at filePath is rewritten
// to hold only the newest maxLines lines once twice that many were written.
func NewLogRotator(writer io.Writer, maxLines int, filePath string) *LogRotator {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}

	return &LogRotator{
		writer:   writer,
		buffer:   NewRingBuffer(maxLines),
		filePath: filePath,
	}
}

// Write implements io.Writer and maintains the line buffer.
func (w *LogRotator) Write(p []byte) (n int, err error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	// Write to the underlying writer first
	n, err = w.writer.Write(p)
	if err != nil {
		return n, err
	}

	for line := range strings.SplitSeq(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}

		w.buffer.Add(line)
		if w.buffer.shouldRotate() {
			if err := w.rotate(); err != nil {
				return n, fmt.Errorf("failed to rotate log file: %w", err)
			}
			w.buffer.markRotated()
		}
	}

	return n, nil
}

// Sync flushes the underlying file when it supports it.
func (w *LogRotator) Sync() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if syncer, ok := w.writer.(interface{ Sync() error }); ok {
		return syncer.Sync()
	}

	return nil
}

// Close closes the underlying writer when it is closable.
func (w *LogRotator) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if closer, ok := w.writer.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

// rotate writes the current buffer to a new file.
func (w *LogRotator) rotate() error {
	// Get all lines in chronological order
	lines := w.buffer.Lines()
	if len(lines) == 0 {
		return nil
	}

	// Create a temporary file
	temp, err := os.CreateTemp(filepath.Dir(w.filePath), "temp-log-")
	if err != nil {
		return err
	}

	tempPath := temp.Name()

	// Write all lines in one operation
	content := strings.Join(lines, "\n") + "\n"
	if _, err := temp.WriteString(content); err != nil {
		temp.Close()
		os.Remove(tempPath)

		return err
	}

	if err := temp.Sync(); err != nil {
		temp.Close()
		os.Remove(tempPath)

		return err
	}

	temp.Close()

	// Close the original writer if it implements io.Closer
	if closer, ok := w.writer.(io.Closer); ok {
		closer.Close()
	}

	// On Windows, remove the original file first
	os.Remove(w.filePath)

	// Rename temp file to original
	if err := os.Rename(tempPath, w.filePath); err != nil {
		return err
	}

	// Reopen the file for writing
	newFile, err := os.OpenFile(w.filePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	// Update the writer
	w.writer = newFile

	return nil
}
