package core

// reader.go turns an uploaded file into a header plus data records.
//
// Files come from Windows tools that write single-byte text. The bytes are
// decoded with the configured encoding (ISO-8859-1 unless told otherwise),
// a leading UTF-8 byte-order mark is dropped before decoding, and the result
// is parsed as semicolon-separated values with a header row.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Delimiter separates fields in transfer files.
const Delimiter = ';'

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a decoded file.
type Table struct {
	// Headers are normalized with NormalizeHeader.
	Headers []string
	Records []Record
}

// Record is one data row with its line number in the file.
type Record struct {
	Line   int
	Fields []string
}

// Get returns the field at column i, or "" when the row is short.
func (r Record) Get(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// Column returns the index of a normalized header, or -1.
func (t *Table) Column(header string) int {
	for i, h := range t.Headers {
		if h == header {
			return i
		}
	}
	return -1
}

// EncodingByName returns the decoder for a FILE_ENCODING value.
func EncodingByName(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "latin1", "latin-1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "utf-8", "utf8":
		return unicode.UTF8, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// ReadTable decodes and parses a transfer file. Blank lines are skipped.
// Errors are *SystemError: the file cannot be interpreted at all.
func ReadTable(data []byte, enc encoding.Encoding) (*Table, error) {
	if enc == nil {
		enc = charmap.ISO8859_1
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &SystemError{Op: "read file", Err: errors.New("empty file")}
	}

	r := csv.NewReader(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
	r.Comma = Delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, &SystemError{Op: "read header", Err: err}
	}
	t := &Table{Headers: make([]string, len(header))}
	for i, h := range header {
		t.Headers[i] = NormalizeHeader(h)
	}

	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &SystemError{Op: "parse file", Err: err}
		}
		if blank(fields) {
			continue
		}
		line, _ := r.FieldPos(0)
		t.Records = append(t.Records, Record{Line: line, Fields: fields})
	}
	return t, nil
}

// blank reports whether every field is empty or whitespace, e.g. ";;;".
func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
