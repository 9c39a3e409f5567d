// Package export streams tabular reports as CSV.
package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

const (
	rowsPerFlush = 200
	bufferBytes  = 32 << 10
)

var errClosedStream = errors.New("export: csv stream not initialised")

// CSVStreamer writes CRLF-terminated CSV through a buffer that is flushed
// every rowsPerFlush rows, so long exports reach the client while they are
// still being produced.
type CSVStreamer struct {
	out     *bufio.Writer
	rows    *csv.Writer
	pending int
}

func NewCSVStreamer(w io.Writer) *CSVStreamer {
	out := bufio.NewWriterSize(w, bufferBytes)
	rows := csv.NewWriter(out)
	rows.UseCRLF = true
	return &CSVStreamer{out: out, rows: rows}
}

func (s *CSVStreamer) ready() error {
	if s == nil || s.out == nil || s.rows == nil {
		return errClosedStream
	}
	return nil
}

// Comment writes a "# ..." preamble line. It must precede the first Row.
func (s *CSVStreamer) Comment(text string) error {
	if err := s.ready(); err != nil {
		return err
	}
	text = strings.TrimRight(text, "\r\n")
	if !strings.HasPrefix(text, "#") {
		text = "# " + text
	}
	_, err := s.out.WriteString(text + "\r\n")
	return err
}

// Row writes one record.
func (s *CSVStreamer) Row(fields ...string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.rows.Write(fields); err != nil {
		return err
	}
	if s.pending++; s.pending < rowsPerFlush {
		return nil
	}
	return s.Flush()
}

// Flush pushes buffered rows to the underlying writer.
func (s *CSVStreamer) Flush() error {
	if err := s.ready(); err != nil {
		return err
	}
	s.rows.Flush()
	if err := s.rows.Error(); err != nil {
		return err
	}
	s.pending = 0
	return s.out.Flush()
}
