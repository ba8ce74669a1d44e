// Package fasta reads FASTA sequence files such as the representative-set
// companion of a count table.
package fasta

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrMalformed reports content that is not FASTA: sequence data before the
// first header line, or a .gz file that does not decompress.
var ErrMalformed = errors.New("malformed fasta")

const maxLineSize = 16 * 1024 * 1024

// Record is a single FASTA entry.
type Record struct {
	Header   string
	Sequence string
}

// ID returns the record identifier.
func (r Record) ID() string {
	return RecordID(r.Header)
}

// RecordID returns the token before the first whitespace of a header line.
// A leading '>' is ignored.
func RecordID(header string) string {
	header = strings.TrimPrefix(header, ">")
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Reader streams records from a FASTA source.
type Reader struct {
	scanner *bufio.Scanner
	pending string
	line    int
	started bool
	done    bool
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// Next returns the next record, or io.EOF when the input is exhausted.
func (r *Reader) Next() (Record, error) {
	if r.done {
		return Record{}, io.EOF
	}
	if !r.started {
		if err := r.seekHeader(); err != nil {
			return Record{}, err
		}
	}

	record := Record{Header: r.pending}
	var seq strings.Builder
	for r.scanner.Scan() {
		r.line++
		line := strings.TrimRight(r.scanner.Text(), "\r")
		if strings.HasPrefix(line, ">") {
			r.pending = strings.TrimPrefix(line, ">")
			record.Sequence = seq.String()
			return record, nil
		}
		seq.WriteString(strings.TrimSpace(line))
	}
	if err := r.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("read fasta line %d: %w", r.line+1, err)
	}
	r.done = true
	record.Sequence = seq.String()
	return record, nil
}

func (r *Reader) seekHeader() error {
	r.started = true
	for r.scanner.Scan() {
		r.line++
		line := strings.TrimRight(r.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if !strings.HasPrefix(line, ">") {
			return fmt.Errorf("%w: line %d: sequence data before first header", ErrMalformed, r.line)
		}
		r.pending = strings.TrimPrefix(line, ">")
		return nil
	}
	if err := r.scanner.Err(); err != nil {
		return fmt.Errorf("read fasta line %d: %w", r.line+1, err)
	}
	r.done = true
	return io.EOF
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g gzipFile) Read(p []byte) (int, error) {
	n, err := g.Reader.Read(p)
	if corruptGzip(err) {
		err = fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return n, err
}

func (g gzipFile) Close() error {
	gzErr := g.Reader.Close()
	fileErr := g.file.Close()
	return errors.Join(gzErr, fileErr)
}

// Open opens path for reading, decompressing it when the name ends in .gz.
func Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fasta: %w", err)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return file, nil
	}
	gz, err := gzip.NewReader(file)
	if err != nil {
		_ = file.Close()
		if corruptGzip(err) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("open gzip fasta: %w: %w", ErrMalformed, err)
		}
		return nil, fmt.Errorf("open gzip fasta: %w", err)
	}
	return gzipFile{Reader: gz, file: file}, nil
}

// corruptGzip reports decompression errors caused by the file content rather
// than by reading it.
func corruptGzip(err error) bool {
	if err == nil {
		return false
	}
	var corrupt flate.CorruptInputError
	return errors.Is(err, gzip.ErrHeader) ||
		errors.Is(err, gzip.ErrChecksum) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.As(err, &corrupt)
}

// ReadIDs returns the identifier of every record in path, in file order.
func ReadIDs(path string) ([]string, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader := NewReader(rc)
	var ids []string
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return ids, nil
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, record.ID())
	}
}
