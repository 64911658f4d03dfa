package port

import (
	"bytes"
	"errors"
	"io"
	"unicode/utf8"
)

// readChunk is the size of a single Read from the port.
const readChunk = 256

// maxLineLength bounds a line without a terminator; longer input is cut.
const maxLineLength = 4096

// ErrInvalidEncoding is returned when a line is not valid UTF-8.
var ErrInvalidEncoding = errors.New("port: line is not valid UTF-8")

// LineReader assembles newline-terminated lines from a Port.
// Partial lines survive read timeouts.
type LineReader struct {
	// r is the source of bytes.
	r io.Reader
	// pending holds bytes received after the last newline.
	pending bytes.Buffer
	// chunk is the reusable read buffer.
	chunk []byte
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{
		r:     r,
		chunk: make([]byte, readChunk),
	}
}

// ReadLine returns the next complete line without its terminator.
// It returns ErrTimeout when a read timed out before a line completed, and
// ErrInvalidEncoding for a line that does not decode.
func (l *LineReader) ReadLine() (string, error) {
	for {
		if line, ok := l.next(); ok {
			if !utf8.Valid(line) {
				return "", ErrInvalidEncoding
			}

			return string(line), nil
		}

		n, err := l.r.Read(l.chunk)
		if n > 0 {
			l.pending.Write(l.chunk[:n])
		}

		if err != nil {
			return "", err
		}

		if n == 0 {
			return "", ErrTimeout
		}
	}
}

// next pops one complete line from pending.
func (l *LineReader) next() ([]byte, bool) {
	data := l.pending.Bytes()

	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		if len(data) >= maxLineLength {
			cut := runeBoundary(data)
			line := bytes.Clone(data[:cut])
			l.pending.Next(cut)

			return line, true
		}

		return nil, false
	}

	line := bytes.Clone(data[:i])
	l.pending.Next(i + 1)

	return bytes.TrimRight(line, "\r"), true
}

// runeBoundary returns the length of data without a trailing incomplete
// UTF-8 sequence. The rest is kept for the next line.
func runeBoundary(data []byte) int {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(data[i]) {
			continue
		}

		if utf8.FullRune(data[i:]) || i == 0 {
			return len(data)
		}

		return i
	}

	return len(data)
}
