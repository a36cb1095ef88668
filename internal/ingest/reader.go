// Package ingest reads one log source line by line.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/groktime-project/groktime/internal/core"
)

// maxLineBytes caps a single line; longer lines end the read with an error.
const maxLineBytes = 1024 * 1024

// Reader yields LogLines from r in order with zero-based indices. Trailing
// whitespace (including a CR from CRLF files) is removed.
type Reader struct {
	scanner *bufio.Scanner
	next    int
	err     error
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Reader{scanner: sc}
}

// Next returns the next line. It returns false at end of input or on a
// read error; check Err afterwards.
func (r *Reader) Next() (core.LogLine, bool) {
	if r.err != nil || !r.scanner.Scan() {
		if r.err == nil {
			if err := r.scanner.Err(); err != nil {
				r.err = fmt.Errorf("reading line %d: %w", r.next, err)
			}
		}
		return core.LogLine{}, false
	}
	line := core.LogLine{
		Index: r.next,
		Text:  strings.TrimRight(r.scanner.Text(), " \t\r\n\v\f"),
	}
	r.next++
	return line, true
}

// Err returns the first read error, if any.
func (r *Reader) Err() error { return r.err }

// File is a Reader over an opened log file.
type File struct {
	*Reader
	f *os.File
}

// Open opens path for reading. "-" reads standard input.
func Open(path string) (*File, error) {
	if path == "-" {
		return &File{Reader: NewReader(os.Stdin)}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return &File{Reader: NewReader(f), f: f}, nil
}

// Close closes the underlying file. Standard input is left open.
func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	return f.f.Close()
}
