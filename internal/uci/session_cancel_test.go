package uci

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newIdleSession() *Session {
	return &Session{
		conn:   NewConn(strings.NewReader(""), io.Discard),
		opt:    Options{BestLines: 1},
		logger: zap.NewNop(),
		state:  StateReady,
	}
}

// The cancel callback is made to start right after op returns, before it
// can be deregistered.
func TestDoKeepsSessionWhenCancelledAfterCompletion(t *testing.T) {
	orig := afterFunc
	t.Cleanup(func() { afterFunc = orig })
	afterFunc = func(ctx context.Context, f func()) func() bool {
		return func() bool {
			f()
			return false
		}
	}

	s := newIdleSession()
	if err := s.do(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("do: %v", err)
	}
	if s.State() != StateReady {
		t.Fatalf("state = %v, want ready", s.State())
	}
}

func TestDoClosesSessionWhenCancelledDuringOp(t *testing.T) {
	orig := afterFunc
	t.Cleanup(func() { afterFunc = orig })
	var fire func()
	afterFunc = func(ctx context.Context, f func()) func() bool {
		fire = f
		return func() bool { return false }
	}

	s := newIdleSession()
	ctx, cancel := context.WithCancel(context.Background())
	err := s.do(ctx, func() error {
		cancel()
		fire()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if s.State() != StateClosed {
		t.Fatalf("state = %v, want closed", s.State())
	}
}
