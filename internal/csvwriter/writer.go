// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package csvwriter writes flattened records as one delimited table whose
// columns are taken from the first record written.
package csvwriter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/cespare/xxhash/v2"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cardinalhq/ddbexport/internal/ddbitem"
)

// State is the writer lifecycle position.
type State int

const (
	StateUnopened State = iota
	StateSchemaPending
	StateSchemaFixed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateSchemaPending:
		return "schema-pending"
	case StateSchemaFixed:
		return "schema-fixed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrNotOpen = errors.New("csv writer has no output")
	ErrClosed  = errors.New("csv writer is closed")
)

// Writer fixes its column set from the first record and writes every later
// record against it. Extra fields in later records are dropped and missing
// fields are written empty; both are tracked for reporting.
type Writer struct {
	out    io.Writer
	csv    *csv.Writer
	state  State
	schema []string
	index  map[string]int

	rows          int64
	mismatchRows  int64
	droppedFields mapset.Set[string]
	missingFields mapset.Set[string]

	row    []string
	hasher *xxhash.Digest
	digest uint64
}

// Option configures a Writer.
type Option func(*Writer)

// WithDelimiter sets the field delimiter. The default is a comma.
func WithDelimiter(r rune) Option {
	return func(w *Writer) {
		w.csv.Comma = r
	}
}

// WithCRLF ends rows with \r\n instead of \n.
func WithCRLF() Option {
	return func(w *Writer) {
		w.csv.UseCRLF = true
	}
}

// New returns a writer in the SchemaPending state; no bytes are written
// until the first record arrives.
func New(out io.Writer, opts ...Option) *Writer {
	w := &Writer{
		out:           out,
		csv:           csv.NewWriter(out),
		state:         StateSchemaPending,
		droppedFields: mapset.NewThreadUnsafeSet[string](),
		missingFields: mapset.NewThreadUnsafeSet[string](),
		hasher:        xxhash.New(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Writer) State() State {
	return w.state
}

// Write appends one record. The first call fixes the schema and writes the
// header row.
func (w *Writer) Write(rec *ddbitem.FlatRecord) error {
	switch w.state {
	case StateUnopened:
		return ErrNotOpen
	case StateClosed:
		return ErrClosed
	case StateSchemaPending:
		if err := w.fixSchema(rec.Names()); err != nil {
			return err
		}
	}

	mismatch := false
	for i := range w.row {
		w.row[i] = ""
	}
	for _, name := range rec.Names() {
		pos, ok := w.index[name]
		if !ok {
			w.droppedFields.Add(name)
			mismatch = true
			continue
		}
		v, _ := rec.Get(name)
		cell, err := FormatValue(v)
		if err != nil {
			return fmt.Errorf("format field %q: %w", name, err)
		}
		w.row[pos] = cell
	}
	if rec.Len() != len(w.schema) || mismatch {
		for _, col := range w.schema {
			if _, ok := rec.Get(col); !ok {
				w.missingFields.Add(col)
				mismatch = true
			}
		}
	}

	if err := w.writeRecord(w.row); err != nil {
		return fmt.Errorf("write row %d: %w", w.rows+1, err)
	}
	w.rows++
	if mismatch {
		w.mismatchRows++
	}
	w.digest += w.rowHash()
	return nil
}

func (w *Writer) fixSchema(names []string) error {
	w.schema = slices.Clone(names)
	w.index = make(map[string]int, len(names))
	for i, name := range names {
		w.index[name] = i
	}
	w.row = make([]string, len(names))
	w.state = StateSchemaFixed
	if err := w.writeRecord(w.schema); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	slog.Debug("Output schema fixed from first record", slog.Int("columns", len(w.schema)))
	return nil
}

// writeRecord writes one CSV record. encoding/csv renders a record made of a
// single empty field as a blank line, which readers skip, so that case is
// written as a quoted empty field instead.
func (w *Writer) writeRecord(record []string) error {
	if len(record) != 1 || record[0] != "" {
		return w.csv.Write(record)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	line := `""` + "\n"
	if w.csv.UseCRLF {
		line = `""` + "\r\n"
	}
	_, err := io.WriteString(w.out, line)
	return err
}

// rowHash hashes the rendered cells of the current row. Cells are length
// prefixed so that ("ab","c") and ("a","bc") differ.
func (w *Writer) rowHash() uint64 {
	w.hasher.Reset()
	var lenbuf [8]byte
	for _, cell := range w.row {
		n := uint64(len(cell))
		for i := range lenbuf {
			lenbuf[i] = byte(n >> (8 * i))
		}
		_, _ = w.hasher.Write(lenbuf[:])
		_, _ = w.hasher.WriteString(cell)
	}
	return w.hasher.Sum64()
}

// Flush pushes buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	if w.state == StateClosed || w.state == StateUnopened {
		return nil
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Close flushes and moves the writer to Closed. It does not close the
// underlying io.Writer. Calling Close more than once is safe.
func (w *Writer) Close() error {
	if w.state == StateClosed {
		return nil
	}
	if w.state == StateUnopened {
		w.state = StateClosed
		return nil
	}
	w.csv.Flush()
	err := w.csv.Error()
	w.state = StateClosed
	if w.mismatchRows > 0 {
		slog.Warn("Some records did not match the output columns",
			slog.Int64("rows", w.mismatchRows),
			slog.Any("droppedFields", w.DroppedFields()),
			slog.Any("missingFields", w.MissingFields()))
	}
	return err
}

// Count is the number of data rows written, header excluded.
func (w *Writer) Count() int64 {
	return w.rows
}

// Schema returns the fixed columns, or nil while the schema is pending.
func (w *Writer) Schema() []string {
	return slices.Clone(w.schema)
}

// MismatchRows is the number of rows whose field set differed from the schema.
func (w *Writer) MismatchRows() int64 {
	return w.mismatchRows
}

// DroppedFields lists field names seen after schema fixation that are not
// output columns, sorted.
func (w *Writer) DroppedFields() []string {
	return sortedMembers(w.droppedFields)
}

// MissingFields lists output columns that some later record lacked, sorted.
func (w *Writer) MissingFields() []string {
	return sortedMembers(w.missingFields)
}

// Digest is an order-independent checksum of every data row written. Two
// exports with the same row multiset have the same digest.
func (w *Writer) Digest() uint64 {
	return w.digest
}

func sortedMembers(s mapset.Set[string]) []string {
	out := s.ToSlice()
	slices.Sort(out)
	return out
}
