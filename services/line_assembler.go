package services

import (
	"bytes"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"csv_stream_backend/pkg/errs"
)

const DefaultMaxLineBytes = 4 * 1024 * 1024

// LineAssembler turns arbitrarily split UTF-8 chunks into complete lines.
// Invalid byte sequences become U+FFFD. A multi-byte rune cut by a chunk
// boundary is held until the next Feed, so the output does not depend on
// where the chunks were split.
type LineAssembler struct {
	maxLineBytes int
	decoded      bytes.Buffer
	decoder      io.WriteCloser
	partial      []byte
	flushed      bool
}

func NewLineAssembler(maxLineBytes int) *LineAssembler {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	a := &LineAssembler{maxLineBytes: maxLineBytes}
	a.decoder = transform.NewWriter(&a.decoded, unicode.UTF8BOM.NewDecoder())
	return a
}

// Feed returns the lines completed by raw, each with its terminator ("\n",
// "\r\n" or a lone "\r"). The trailing fragment is kept for the next call; a
// "\r" at the very end is held until the next byte shows whether "\n" follows.
func (a *LineAssembler) Feed(raw []byte) ([]string, error) {
	if a.flushed {
		return nil, errs.New(errs.CodeChunkProcessing, "LineAssembler.Feed", "assembler already flushed")
	}
	if _, err := a.decoder.Write(raw); err != nil {
		return nil, errs.Wrap(err, errs.CodeChunkProcessing, "LineAssembler.Feed", "decode chunk")
	}
	lines := a.drain(false)
	if len(a.partial) > a.maxLineBytes {
		return lines, errs.New(errs.CodeChunkProcessing, "LineAssembler.Feed", "line exceeds maximum length")
	}
	return lines, nil
}

// Flush decodes whatever is still pending and returns the unterminated tail.
func (a *LineAssembler) Flush() ([]string, string, error) {
	if a.flushed {
		return nil, "", nil
	}
	a.flushed = true
	if err := a.decoder.Close(); err != nil {
		return nil, "", errs.Wrap(err, errs.CodeChunkProcessing, "LineAssembler.Flush", "decode tail")
	}
	lines := a.drain(true)
	tail := string(a.partial)
	a.partial = nil
	return lines, tail, nil
}

// Pending is the size of the held partial line in bytes.
func (a *LineAssembler) Pending() int {
	return len(a.partial)
}

// drain moves decoded text into partial and cuts off every complete line.
// With final set, a trailing "\r" terminates its line.
func (a *LineAssembler) drain(final bool) []string {
	if a.decoded.Len() == 0 && !final {
		return nil
	}
	scanFrom := len(a.partial)
	// only the last byte of partial can be an undecided "\r"
	if scanFrom > 0 && a.partial[scanFrom-1] == '\r' {
		scanFrom--
	}
	a.partial = append(a.partial, a.decoded.Bytes()...)
	a.decoded.Reset()

	var lines []string
	start := 0
	for {
		i := bytes.IndexAny(a.partial[scanFrom:], "\r\n")
		if i < 0 {
			break
		}
		pos := scanFrom + i
		end := pos + 1
		if a.partial[pos] == '\r' {
			if end == len(a.partial) {
				if !final {
					break
				}
			} else if a.partial[end] == '\n' {
				end++
			}
		}
		lines = append(lines, string(a.partial[start:end]))
		start = end
		scanFrom = end
	}
	if start > 0 {
		n := copy(a.partial, a.partial[start:])
		a.partial = a.partial[:n]
	}
	return lines
}
