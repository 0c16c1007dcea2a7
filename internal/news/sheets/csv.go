package sheets

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CSVAppender appends rows to a local CSV file, writing Header first when
// the file is new or empty.
type CSVAppender struct {
	path string
	mu   sync.Mutex
}

// NewCSVAppender creates an appender for path.
func NewCSVAppender(path string) *CSVAppender {
	return &CSVAppender{path: path}
}

// Name implements Appender.
func (c *CSVAppender) Name() string { return "csv" }

// Append implements Appender.
func (c *CSVAppender) Append(_ context.Context, rows []Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if err := w.Write(r.Strings()); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
