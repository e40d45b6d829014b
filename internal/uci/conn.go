package uci

import (
	"errors"
	"io"
	"sync"
)

// Conn is the duplex line channel to an engine: commands go out one line at
// a time, replies come back through ReadLine. Close must unblock a pending
// ReadLine and may be called more than once.
type Conn interface {
	LineReader
	WriteLine(line string) error
	Close() error
}

type streamConn struct {
	LineReader
	w io.Writer

	wmu sync.Mutex

	closeOnce sync.Once
	closeErr  error
	closers   []io.Closer
}

// NewConn builds a Conn over an engine's output r and input w. Whichever of
// the two implement io.Closer are closed by Close.
func NewConn(r io.Reader, w io.Writer) Conn {
	c := &streamConn{LineReader: NewLineReader(r), w: w}
	if wc, ok := w.(io.Closer); ok {
		c.closers = append(c.closers, wc)
	}
	if rc, ok := r.(io.Closer); ok {
		c.closers = append(c.closers, rc)
	}
	return c
}

func (c *streamConn) WriteLine(line string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := io.WriteString(c.w, line+"\n")
	return err
}

func (c *streamConn) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		for _, cl := range c.closers {
			if err := cl.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
