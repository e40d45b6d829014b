package uci

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// LineReader yields engine output one line at a time, terminator stripped.
// It blocks until a line is available and returns io.EOF once the engine
// output is closed.
type LineReader interface {
	ReadLine() (string, error)
}

type lineReader struct {
	r *bufio.Reader
}

func NewLineReader(r io.Reader) LineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

func (l *lineReader) ReadLine() (string, error) {
	line, err := l.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadUntil reads lines until done reports true for one of them and returns
// every line read, terminator included. Running out of input first is a
// protocol violation.
func ReadUntil(r LineReader, command, expected string, done func(string) bool) ([]string, error) {
	var lines []string
	for {
		line, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			got := ""
			if len(lines) > 0 {
				got = lines[len(lines)-1]
			}
			return lines, &ProtocolError{Command: command, Expected: expected, Got: got, Err: err}
		}
		lines = append(lines, line)
		if done(line) {
			return lines, nil
		}
	}
}

func ReadUCIReplies(r LineReader) ([]string, error) {
	return ReadUntil(r, "uci", "uciok", func(line string) bool { return line == "uciok" })
}

func ReadIsReadyReplies(r LineReader) ([]string, error) {
	return ReadUntil(r, "isready", "readyok", func(line string) bool { return line == "readyok" })
}

func ReadGoReplies(r LineReader) ([]string, error) {
	return ReadUntil(r, "go", "bestmove", func(line string) bool { return strings.HasPrefix(line, "bestmove") })
}
