// Package csvlog persists result records to an append-only CSV file.
//
// The file is the system of record: every probe outcome lands here in the
// order it was produced, and existing rows are never rewritten. A header row
// is written once, when the file is created or found empty.
package csvlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkiops/pkihealth/internal/domain"
)

// Header is the column order of the results log.
var Header = []string{
	"timestamp", "kind", "target", "status",
	"code_or_port", "duration_ms", "content_hash", "note",
}

// Writer appends result records to a CSV file. Safe for concurrent use.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	w    *csv.Writer
	path string
}

// Open opens (or creates) the results log at path in append mode, writing
// the header row only when the file is empty.
func Open(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening results log: %w", err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	w := &Writer{f: f, w: csv.NewWriter(f), path: path}
	if st.Size() == 0 {
		if err := w.w.Write(Header); err != nil {
			f.Close()
			return nil, err
		}
		w.w.Flush()
		if err := w.w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return w, nil
}

// Path returns the location of the underlying file.
func (w *Writer) Path() string { return w.path }

// Append validates rec and writes it as one CSV row, flushed to disk before
// returning.
func (w *Writer) Append(rec domain.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.w.Write(row(rec)); err != nil {
		return err
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes buffered rows and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.w.Flush()
	ferr := w.w.Error()
	cerr := w.f.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}

func row(rec domain.Record) []string {
	return []string{
		rec.Timestamp,
		string(rec.Kind),
		rec.Target,
		string(rec.Status),
		rec.CodeOrPort,
		strconv.FormatInt(rec.DurationMS, 10),
		rec.ContentHash,
		rec.Note,
	}
}

// ReadAll loads every record from the results log at path, skipping the
// header row.
func ReadAll(path string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)

	var out []domain.Record
	first := true
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading results log: %w", err)
		}
		if first {
			first = false
			if fields[0] == Header[0] {
				continue
			}
		}
		rec, err := fromRow(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Tail returns the last n raw lines of the file at path, header excluded
// when it would otherwise appear.
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var lines []string
	startOfLine := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\n' {
			if line := string(raw[startOfLine:i]); line != "" {
				lines = append(lines, line)
			}
			startOfLine = i + 1
		}
	}
	if startOfLine < len(raw) {
		lines = append(lines, string(raw[startOfLine:]))
	}
	if len(lines) > 0 && lines[0] == headerLine() {
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

func headerLine() string {
	out := ""
	for i, h := range Header {
		if i > 0 {
			out += ","
		}
		out += h
	}
	return out
}

func fromRow(fields []string) (domain.Record, error) {
	ms, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return domain.Record{}, fmt.Errorf("bad duration %q: %w", fields[5], err)
	}
	return domain.Record{
		Timestamp:   fields[0],
		Kind:        domain.Kind(fields[1]),
		Target:      fields[2],
		Status:      domain.Status(fields[3]),
		CodeOrPort:  fields[4],
		DurationMS:  ms,
		ContentHash: fields[6],
		Note:        fields[7],
	}, nil
}
