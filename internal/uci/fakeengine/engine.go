// Package fakeengine is a scriptable stand-in for a UCI engine. It speaks
// enough of the protocol to drive a uci.Session end to end without a real
// engine binary.
package fakeengine

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Engine answers UCI commands read from one stream on another. The zero
// value is usable.
type Engine struct {
	Name   string
	Author string
	// Options are extra lines sent between the id lines and uciok.
	Options []string

	// Lines returns the info lines reported by a search with the given
	// MultiPV setting. Nil means DefaultLines.
	Lines func(multiPV int) []string
	// BestMove overrides the move sent with bestmove.
	BestMove string

	// HangOnStop makes the engine ignore stop so bestmove never arrives.
	HangOnStop bool
	// ExitOn makes Serve return as soon as a command with this prefix
	// arrives, which looks like a crash to the other side.
	ExitOn string

	mu       sync.Mutex
	received []string
}

// Received returns the commands read so far.
func (e *Engine) Received() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.received...)
}

// Serve reads commands from r until EOF or quit and writes the replies to w.
func (e *Engine) Serve(r io.Reader, w io.Writer) error {
	multiPV := 1
	searching := false
	var last []string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		cmd := strings.TrimSpace(sc.Text())
		if cmd == "" {
			continue
		}
		e.mu.Lock()
		e.received = append(e.received, cmd)
		e.mu.Unlock()

		if e.ExitOn != "" && strings.HasPrefix(cmd, e.ExitOn) {
			return nil
		}

		var out []string
		switch {
		case cmd == "uci":
			out = append(out, "id name "+orDefault(e.Name, "Fake engine"))
			out = append(out, "id author "+orDefault(e.Author, "Santa"))
			out = append(out, e.Options...)
			out = append(out, "uciok")
		case cmd == "isready":
			out = []string{"readyok"}
		case strings.HasPrefix(cmd, "setoption name MultiPV value "):
			n, err := strconv.Atoi(strings.TrimPrefix(cmd, "setoption name MultiPV value "))
			if err == nil && n > 0 {
				multiPV = n
			}
		case strings.HasPrefix(cmd, "go"):
			last = e.lines(multiPV)
			out = last
			if cmd == "go infinite" {
				searching = true
			} else {
				out = append(append([]string(nil), last...), e.bestMove(last))
			}
		case cmd == "stop":
			if searching && !e.HangOnStop {
				searching = false
				out = []string{e.bestMove(last)}
			}
		case cmd == "quit":
			return nil
		}

		for _, line := range out {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return sc.Err()
}

func (e *Engine) lines(multiPV int) []string {
	if e.Lines != nil {
		return e.Lines(multiPV)
	}
	return DefaultLines(multiPV)
}

func (e *Engine) bestMove(lines []string) string {
	if e.BestMove != "" {
		return "bestmove " + e.BestMove
	}
	for i := len(lines) - 1; i >= 0; i-- {
		fields := strings.Fields(lines[i])
		for j, f := range fields {
			if f == "pv" && j+1 < len(fields) && strings.Contains(lines[i], "multipv 1 ") {
				return "bestmove " + fields[j+1]
			}
		}
	}
	return "bestmove 0000"
}

var candidateMoves = []string{"e2e4", "d2d4", "g1f3", "c2c4", "e2e3", "b1c3", "g2g3", "f2f4"}

// DefaultLines reports two depths for each rank. At depth 2 rank 1 is e2e4 at
// +30 and every further rank is 10 centipawns worse; depth 1 scores 5 lower.
func DefaultLines(multiPV int) []string {
	var out []string
	for depth := 1; depth <= 2; depth++ {
		for rank := 1; rank <= multiPV; rank++ {
			cp := 30 - 10*(rank-1)
			if depth == 1 {
				cp -= 5
			}
			out = append(out, fmt.Sprintf("info depth %d seldepth %d multipv %d score cp %d nodes %d time %d pv %s",
				depth, depth, rank, cp, depth*100+rank, depth, candidateMoves[(rank-1)%len(candidateMoves)]))
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
