package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/dealmungchi/marketcrawler/internal/record"
	"github.com/dealmungchi/marketcrawler/pkg/errors"
)

// Sink accumulates canonical records and flushes them to durable output
type Sink interface {
	Append(rec record.CanonicalRecord) error
	Flush() error
	Close() error
}

// CSVSink writes records as CSV rows, columns in schema order.
// Each flush writes the whole accumulated table to a temp file and
// renames it over the output path, so a crash never leaves a truncated
// file and partial results survive a failed crawl.
type CSVSink struct {
	path          string
	columns       []string
	flushEvery    int
	flushInterval time.Duration

	mu        sync.Mutex
	rows      [][]string
	flushed   int // rows already durable
	lastFlush time.Time
	closed    bool
}

// utf8BOM makes spreadsheet tools detect the encoding, matching the
// utf-8-sig output the previous exporter produced
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewCSVSink creates a sink writing to path. flushEvery and
// flushInterval bound how much output a crash can lose: a flush happens
// after that many appends or that much time, whichever comes first.
func NewCSVSink(path string, schema record.Schema, flushEvery int, flushInterval time.Duration) *CSVSink {
	if flushEvery < 1 {
		flushEvery = 1
	}
	return &CSVSink{
		path:          path,
		columns:       schema.Columns(),
		flushEvery:    flushEvery,
		flushInterval: flushInterval,
		lastFlush:     time.Now(),
	}
}

// Append buffers one record and flushes when the cadence says so
func (s *CSVSink) Append(rec record.CanonicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.NewSink("append after close", nil)
	}

	row := make([]string, len(s.columns))
	for i, col := range s.columns {
		row[i] = formatValue(rec[col])
	}
	s.rows = append(s.rows, row)

	pending := len(s.rows) - s.flushed
	if pending >= s.flushEvery || (s.flushInterval > 0 && time.Since(s.lastFlush) >= s.flushInterval) {
		return s.flushLocked()
	}
	return nil
}

// Flush writes all buffered records to disk. Idempotent: a flush with
// nothing new pending is a no-op once the file exists.
func (s *CSVSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// Close flushes whatever is buffered and refuses further appends
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	err := s.flushLocked()
	s.closed = true
	return err
}

// Rows returns how many records the sink has accepted
func (s *CSVSink) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *CSVSink) flushLocked() error {
	if s.flushed == len(s.rows) {
		if _, err := os.Stat(s.path); err == nil {
			return nil
		}
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewSink("create output directory", err)
		}
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.NewSink("create temp output file", err)
	}

	if _, err := f.Write(utf8BOM); err != nil {
		f.Close()
		return errors.NewSink("write output", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(s.columns); err != nil {
		f.Close()
		return errors.NewSink("write header", err)
	}
	if err := w.WriteAll(s.rows); err != nil {
		f.Close()
		return errors.NewSink("write rows", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return errors.NewSink("write rows", err)
	}

	if err := f.Close(); err != nil {
		return errors.NewSink("close temp output file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.NewSink("rename temp output file", err)
	}

	s.flushed = len(s.rows)
	s.lastFlush = time.Now()
	return nil
}

// formatValue renders a canonical field value as a CSV cell
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
