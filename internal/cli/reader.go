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

type line struct {
	err  error
	text string
}

// LineReader hands out input lines while honouring context cancellation.
// A single goroutine scans the underlying reader on first use; a line read
// while nobody is waiting stays buffered for the next ReadLine.
type LineReader struct {
	src   io.Reader
	lines chan line
	once  sync.Once
}

// NewLineReader wraps src.
func NewLineReader(src io.Reader) *LineReader {
	if src == nil {
		panic("reader cannot be nil")
	}
	return &LineReader{src: src, lines: make(chan line, 1)}
}

func (r *LineReader) scan() {
	br := bufio.NewReader(r.src)
	for {
		text, err := br.ReadString('\n')
		switch {
		case err == nil:
			r.lines <- line{text: text}
		case errors.Is(err, io.EOF) && text != "":
			r.lines <- line{text: text}
			r.lines <- line{err: io.EOF}
			return
		default:
			r.lines <- line{err: err}
			return
		}
	}
}

// ReadLine returns the next line with surrounding whitespace removed. A last
// line without a newline is still returned; io.EOF follows it.
func (r *LineReader) ReadLine(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}
	r.once.Do(func() { go r.scan() })

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case l := <-r.lines:
		if l.err != nil {
			// Keep reporting the terminal error to later callers.
			r.lines <- l
			return "", l.err
		}
		return strings.TrimSpace(l.text), nil
	}
}
