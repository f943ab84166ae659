package gittables

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rcap107/study-gittables/types"
)

const readerBufSz = 1024 * 1024

// ReadLines calls fn once per line of reader, without the line terminator.
// A line that is not valid UTF-8, or that holds a NUL byte, stops the read
// with ErrDecode.
func ReadLines(reader io.Reader, fn func(line string)) error {
	buffered := bufio.NewReaderSize(reader, readerBufSz)
	lineNo := 0
	for {
		line, err := buffered.ReadString('\n')
		if len(line) > 0 {
			lineNo++
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			if !utf8.ValidString(line) {
				return fmt.Errorf("%w: line %d is not valid UTF-8",
					ErrDecode, lineNo)
			}
			if strings.IndexByte(line, 0) >= 0 {
				return fmt.Errorf("%w: line %d holds binary content",
					ErrDecode, lineNo)
			}
			fn(line)
		}
		if err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}
}

// CountSegments tallies the pre-split segments of every line of reader; the
// result is the training input of a Trainer.
func CountSegments(reader io.Reader, sanitize bool) (types.Counts, error) {
	counts := make(types.Counts)
	err := ReadLines(reader, func(line string) {
		counts.Add(Segments(line, sanitize)...)
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// CountSegmentsFile is CountSegments over the file at path.
func CountSegmentsFile(path string, sanitize bool) (types.Counts, error) {
	handle, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer handle.Close()
	return CountSegments(handle, sanitize)
}

// Counts tallies the units of an encoding.
func (encoding *Encoding) Counts() types.Counts {
	counts := make(types.Counts)
	counts.Add(encoding.Tokens...)
	return counts
}
