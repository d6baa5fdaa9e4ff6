// Package csvinput reads the CSV files that drive an import. The first record
// names the columns and every following record becomes one Row.
package csvinput

import (
	"bytes"        // bytes feeds the decoded file to the CSV parser
	"encoding/csv" // csv is the RFC 4180 parser
	"errors"       // errors is used to match parse errors and io.EOF
	"fmt"          // fmt is used to create readable error messages
	"io"           // io.EOF marks the last row
	"os"           // os is used to read the file from disk
	"strings"      // strings trims field values
)

var (
	// ErrEmptyFile is returned by Open when the file has no header row.
	ErrEmptyFile = errors.New("file contains no data")
	// ErrBadHeader is returned by Open when the header row cannot name the
	// columns of the file.
	ErrBadHeader = errors.New("malformed header")
)

///////////////////////////////////////////////////////////////////////////////
// Options and errors
///////////////////////////////////////////////////////////////////////////////

// Options controls how a file is decoded and split into fields.
type Options struct {
	Delimiter rune     // Delimiter separates fields, ',' unless overridden
	Encoding  Encoding // Encoding of the file on disk
}

// NewOptions returns the defaults: comma separated, encoding detected.
func NewOptions() *Options {
	return &Options{
		Delimiter: ',',
		Encoding:  EncodingAuto,
	}
}

// RowError reports a data record that could not be turned into a Row. The
// Reader stays usable after returning one.
type RowError struct {
	Line int
	Err  error
}

// NewRowError is an initializer function for RowError.
func NewRowError(line int, err error) *RowError {
	return &RowError{Line: line, Err: err}
}

// Error prefixes the cause with the line number.
func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

///////////////////////////////////////////////////////////////////////////////
// Reader
///////////////////////////////////////////////////////////////////////////////

// Reader hands out one Row per data record, in file order.
type Reader struct {
	path     string
	encoding Encoding
	csv      *csv.Reader
	header   []string
}

// Open reads path, decodes it and parses the header. Every error returned
// here is fatal for an import: nothing has been read past the header yet.
func Open(path string, opts *Options) (*Reader, error) {
	if opts == nil {
		opts = NewOptions()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%q: %w", path, ErrEmptyFile)
	}

	text, enc, err := decode(raw, opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", path, err)
	}

	cr := csv.NewReader(bytes.NewReader(text))
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	// Field counts are checked per record so that a short row becomes a
	// RowError instead of ending the read.
	cr.FieldsPerRecord = -1

	r := &Reader{
		path:     path,
		encoding: enc,
		csv:      cr,
	}
	if err := r.readHeader(); err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	record, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return ErrEmptyFile
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	}

	seen := make(map[string]bool, len(record))
	header := make([]string, 0, len(record))
	for i, name := range record {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("%w: column %d has no name", ErrBadHeader, i+1)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate column %q", ErrBadHeader, name)
		}
		seen[name] = true
		header = append(header, name)
	}
	r.header = header
	return nil
}

// Header returns the trimmed column names.
func (r *Reader) Header() []string {
	return append([]string(nil), r.header...)
}

// HasColumn reports whether the header names column.
func (r *Reader) HasColumn(name string) bool {
	for _, c := range r.header {
		if c == name {
			return true
		}
	}
	return false
}

// Encoding is the encoding the file was decoded with. For EncodingAuto it
// is the one that was detected.
func (r *Reader) Encoding() Encoding {
	return r.encoding
}

// Next returns the next data row. It returns io.EOF after the last row and a
// *RowError for a record that is malformed or has the wrong number of fields.
// Records whose fields are all blank are skipped.
func (r *Reader) Next() (*Row, error) {
	for {
		record, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, NewRowError(perr.StartLine, perr.Err)
			}
			return nil, fmt.Errorf("failed to read %q: %w", r.path, err)
		}

		line, _ := r.csv.FieldPos(0)
		if blank(record) {
			continue
		}
		if len(record) != len(r.header) {
			return nil, NewRowError(line, fmt.Errorf("expected %d fields, found %d", len(r.header), len(record)))
		}

		values := make([]string, len(record))
		for i, v := range record {
			values[i] = strings.TrimSpace(v)
		}
		return NewRow(line, r.header, values), nil
	}
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
