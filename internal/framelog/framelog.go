// Package framelog appends one CSV row of cumulative metrics per snapshot.
package framelog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	constants "poolmon/config"
	"poolmon/internal/snapshot"
)

// Columns is the fixed number of fields in every row
const Columns = 17

const mib = 1 << 20

// FileName returns the log file name for a run started at t
func FileName(t time.Time) string {
	return constants.FRAME_LOG_PREFIX + t.UTC().Format(constants.FRAME_LOG_TIMEFMT) + constants.FRAME_LOG_SUFFIX
}

// Writer appends rows to a frame log
type Writer struct {
	mu     sync.Mutex
	csv    *csv.Writer
	closer io.Closer
	file   *os.File
	path   string
}

// NewWriter writes rows to w
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// Create opens a new log file in dir named after start
func Create(dir string, start time.Time) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, FileName(start))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create frame log: %w", err)
	}
	w := NewWriter(f)
	w.file = f
	w.closer = f
	w.path = path
	return w, nil
}

// Path returns the file path, empty for a writer not backed by a file
func (w *Writer) Path() string { return w.path }

// Size returns the current file size in bytes
func (w *Writer) Size() (int64, error) {
	if w.file == nil {
		return 0, nil
	}
	info, err := w.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Write appends the row for frame and flushes it
func (w *Writer) Write(frame *snapshot.DataFrame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.csv.Write(Record(frame)); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", frame.Step, err)
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Close flushes pending rows and closes the file
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	err := w.csv.Error()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
		w.closer = nil
	}
	return err
}

// Record renders frame as one row. Only totals are logged, so the column
// count does not depend on the number of workers.
func Record(frame *snapshot.DataFrame) []string {
	t := frame.Totals
	return []string{
		strconv.Itoa(frame.Step),
		strconv.FormatInt(t.Conns, 10),

		fixed(frame.CPU.User, 1),
		fixed(frame.CPU.Sys, 1),
		fixed(frame.CPU.Idle, 1),
		fixed(t.CPUPercent, 1),

		fixed(frame.Mem.Used/mib, 1),
		fixed(frame.Mem.Caches/mib, 1),
		fixed(t.RSS/mib, 1),
		fixed(t.Mem.HeapUsed/mib, 1),
		fixed(t.Mem.HeapTotal/mib, 1),

		fixed(t.AvgT, 1),
		fixed(t.P90T, 1),
		fixed(t.MaxT, 1),

		fixed(millis(frame.Elapsed()), 0),
		fixed(millis(frame.GenerationTime), 0),
		strconv.FormatInt(t.Packets, 10),
	}
}

func fixed(v float64, digits int) string {
	return strconv.FormatFloat(v, 'f', digits, 64)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
