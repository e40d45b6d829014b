package fakeengine

import (
	"io"
	"sync"

	"github.com/park285/chess-uci/internal/uci"
)

// Connect runs e in a goroutine and returns the session side of the
// connection. Closing the Conn ends Serve.
func Connect(e *Engine) uci.Conn {
	inR, inW := io.Pipe()
	out := newBuffer()
	go func() {
		err := e.Serve(inR, out)
		_ = inR.CloseWithError(err)
		out.closeWrite()
	}()
	return uci.NewConn(out, inW)
}

// buffer is an unbounded in-memory pipe. Engines write without waiting for
// the reader, as they do on an OS pipe.
type buffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	data   []byte
	eof    bool
	closed bool
}

func newBuffer() *buffer {
	b := &buffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.eof {
		return 0, io.ErrClosedPipe
	}
	b.data = append(b.data, p...)
	b.cond.Broadcast()
	return len(p), nil
}

func (b *buffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.data) == 0 && !b.eof && !b.closed {
		b.cond.Wait()
	}
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	if len(b.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n, nil
}

// Close is the reader side hanging up.
func (b *buffer) Close() error {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
	return nil
}

func (b *buffer) closeWrite() {
	b.mu.Lock()
	b.eof = true
	b.cond.Broadcast()
	b.mu.Unlock()
}
