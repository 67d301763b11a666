package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

type scannedLine struct {
	err  error
	text string
}

// LineReader reads trimmed lines from an input stream and gives up when the
// caller's context is done. A single goroutine owns the stream, so a canceled
// read never loses the line that arrives afterwards.
type LineReader struct {
	scanner *bufio.Scanner
	lines   chan scannedLine
	once    sync.Once
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	if r == nil {
		panic("reader cannot be nil")
	}
	return &LineReader{
		scanner: bufio.NewScanner(r),
		lines:   make(chan scannedLine),
	}
}

// ReadLine returns the next line without surrounding whitespace. It returns
// io.EOF once the stream is exhausted and ErrInputCancelled when ctx ends first.
func (r *LineReader) ReadLine(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}
	r.once.Do(func() { go r.scan() })

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case line, ok := <-r.lines:
		if !ok {
			return "", io.EOF
		}
		return line.text, line.err
	}
}

func (r *LineReader) scan() {
	defer close(r.lines)
	for r.scanner.Scan() {
		r.lines <- scannedLine{text: strings.TrimSpace(r.scanner.Text())}
	}
	if err := r.scanner.Err(); err != nil {
		r.lines <- scannedLine{err: err}
	}
}
