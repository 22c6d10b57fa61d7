package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CappedFile is a log file that never grows far beyond maxLines lines.
// Once twice the limit has been written, the file is rewritten to hold only
// the newest maxLines lines.
type CappedFile struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	window *lineWindow
	limit  int
}

// OpenCappedFile opens or creates the log file at path.
func OpenCappedFile(path string, maxLines int) (*CappedFile, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file %s: %w", path, err)
	}

	return &CappedFile{
		file:   f,
		path:   path,
		window: newLineWindow(maxLines),
		limit:  maxLines,
	}, nil
}

// Write implements io.Writer.
func (c *CappedFile) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.file.Write(p)
	if err != nil {
		return n, err
	}

	for line := range strings.SplitSeq(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}

		c.window.push(line)

		if c.window.seen >= c.limit*2 {
			if err := c.compact(); err != nil {
				return n, fmt.Errorf("failed to compact log file: %w", err)
			}

			c.window.seen = c.window.count
		}
	}

	return n, nil
}

// Sync flushes the underlying file.
func (c *CappedFile) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.file.Sync()
}

// Close closes the underlying file.
func (c *CappedFile) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.file.Close()
}

// compact replaces the file with the lines held in the window.
func (c *CappedFile) compact() error {
	lines := c.window.snapshot()
	if len(lines) == 0 {
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), "compact-log-")
	if err != nil {
		return err
	}

	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)

		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	_ = c.file.Close()
	_ = os.Remove(c.path)

	if err := os.Rename(tmpPath, c.path); err != nil {
		return err
	}

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	c.file = f

	return nil
}
