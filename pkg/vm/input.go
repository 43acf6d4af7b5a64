package vm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// InputSource supplies integers to the INPUT command.
type InputSource interface {
	ReadInt() (int64, error)
}

// ErrNoInput is returned by a Queue that has nothing buffered.
var ErrNoInput = errors.New("no input available")

// LineReader reads one decimal integer per line. Blank lines are skipped.
type LineReader struct {
	sc   *bufio.Scanner
	line int
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{sc: bufio.NewScanner(r)}
}

// NewLineScanner shares sc with other readers of the same stream.
func NewLineScanner(sc *bufio.Scanner) *LineReader {
	return &LineReader{sc: sc}
}

func (l *LineReader) ReadInt() (int64, error) {
	for l.sc.Scan() {
		l.line++
		text := strings.TrimSpace(l.sc.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("input line %d: %q is not an integer", l.line, text)
		}
		return v, nil
	}
	if err := l.sc.Err(); err != nil {
		return 0, fmt.Errorf("input line %d: %w", l.line+1, err)
	}
	return 0, io.EOF
}

// Queue is an in-memory InputSource fed by the host, used by interactive
// front ends that collect values between steps.
type Queue struct {
	values []int64
}

func NewQueue(values ...int64) *Queue {
	return &Queue{values: append([]int64(nil), values...)}
}

func (q *Queue) Push(v int64) {
	q.values = append(q.values, v)
}

func (q *Queue) Len() int {
	return len(q.values)
}

func (q *Queue) ReadInt() (int64, error) {
	if len(q.values) == 0 {
		return 0, ErrNoInput
	}
	v := q.values[0]
	q.values = q.values[1:]
	return v, nil
}
