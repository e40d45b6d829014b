package uci

import (
	"errors"
	"fmt"
)

var (
	ErrNoResult       = errors.New("uci: no completed calculation")
	ErrSessionClosed  = errors.New("uci: session closed")
	ErrIncompleteInfo = errors.New("uci: info line lacks score, multipv or pv")
)

// ProtocolError reports an engine reply that broke the command/reply contract:
// the stream ended before the expected terminator, or a handshake reply did
// not match. A session that returns one is closed.
type ProtocolError struct {
	Command  string
	Expected string
	Got      string
	Err      error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("uci %s: protocol violation", e.Command)
	if e.Expected != "" {
		msg += fmt.Sprintf(": expected %q", e.Expected)
	}
	if e.Got != "" {
		msg += fmt.Sprintf(", got %q", e.Got)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ParseError reports a reply fragment that does not follow the UCI field grammar.
type ParseError struct {
	Field    string
	Fragment string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("uci: parse %s %q", e.Field, e.Fragment)
	}
	return fmt.Sprintf("uci: parse %s %q: %v", e.Field, e.Fragment, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(field, fragment string, err error) *ParseError {
	return &ParseError{Field: field, Fragment: fragment, Err: err}
}
