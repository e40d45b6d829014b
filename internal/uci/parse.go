package uci

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Info holds the fields found in one "info" line. Fields the line did not
// carry are left nil.
type Info struct {
	Moves      []string
	LineIndex  *int // multipv rank - 1
	Evaluation *Evaluation
	Depth      *int
	Nodes      *uint64
	TimeMillis *uint64
}

var errMissingValue = errors.New("missing value")

// ParseInfo extracts the structured fields of an engine "info" line.
//
// The pv field runs to the end of the line, so it is located by its last
// occurrence and every other field is searched for in front of it.
func ParseInfo(line string) (Info, error) {
	var info Info
	fields := Tokenize(line, ' ')
	if len(fields) >= 2 && fields[0] == "info" && fields[1] == "string" {
		return info, nil
	}

	head := fields
	if at := lastIndex(fields, "pv"); at >= 0 {
		moves, err := ParsePV(strings.Join(fields[at:], " "))
		if err != nil {
			return Info{}, err
		}
		info.Moves = moves
		head = fields[:at]
	}

	if at := firstIndex(head, "multipv"); at >= 0 {
		rank, err := intValue(head, at)
		if err == nil && rank < 1 {
			err = fmt.Errorf("rank %d out of range", rank)
		}
		if err != nil {
			return Info{}, parseErr("multipv", fragment(head, at, 2), err)
		}
		idx := rank - 1
		info.LineIndex = &idx
	}

	if at := firstIndex(head, "score"); at >= 0 {
		ev, err := ParseScore(strings.Join(head[at:], " "))
		if err != nil {
			return Info{}, err
		}
		info.Evaluation = &ev
	}

	if at := firstIndex(head, "depth"); at >= 0 {
		depth, err := intValue(head, at)
		if err != nil {
			return Info{}, parseErr("depth", fragment(head, at, 2), err)
		}
		info.Depth = &depth
	}

	if at := firstIndex(head, "nodes"); at >= 0 {
		nodes, err := uintValue(head, at)
		if err != nil {
			return Info{}, parseErr("nodes", fragment(head, at, 2), err)
		}
		info.Nodes = &nodes
	}

	if at := firstIndex(head, "time"); at >= 0 {
		ms, err := uintValue(head, at)
		if err != nil {
			return Info{}, parseErr("time", fragment(head, at, 2), err)
		}
		info.TimeMillis = &ms
	}

	return info, nil
}

// ParseScore parses a fragment of the form "score cp <n> [lowerbound|upperbound]"
// or "score mate <n>". Tokens after the score are ignored.
func ParseScore(fragment string) (Evaluation, error) {
	const prefix = "score "
	if !strings.HasPrefix(fragment, prefix) {
		return Evaluation{}, parseErr("score", fragment, errors.New("malformed score"))
	}
	tokens := Tokenize(fragment[len(prefix):], ' ')
	if len(tokens) < 2 {
		return Evaluation{}, parseErr("score", fragment, errMissingValue)
	}

	switch tokens[0] {
	case "mate":
		n, err := strconv.Atoi(tokens[1])
		if err != nil {
			return Evaluation{}, parseErr("score mate", fragment, err)
		}
		switch {
		case n > 0:
			return WhiteMate(uint(n)), nil
		case n < 0:
			return BlackMate(uint(-n)), nil
		default:
			// "mate 0" names no side that is still able to mate.
			return Evaluation{}, parseErr("score mate", fragment, errors.New("mate in 0 is ambiguous"))
		}
	case "cp":
		cp, err := strconv.Atoi(tokens[1])
		if err != nil {
			return Evaluation{}, parseErr("score cp", fragment, err)
		}
		if len(tokens) > 2 {
			switch tokens[2] {
			case "lowerbound":
				return Lower(cp), nil
			case "upperbound":
				return Upper(cp), nil
			}
		}
		return Exact(cp), nil
	default:
		return Evaluation{}, parseErr("score", fragment, fmt.Errorf("unknown score type %q", tokens[0]))
	}
}

// ParsePV parses "pv <move> <move> ...". The fragment must reach the end of
// the line.
func ParsePV(fragment string) ([]string, error) {
	const prefix = "pv "
	if fragment == "pv" {
		return []string{}, nil
	}
	if !strings.HasPrefix(fragment, prefix) {
		return nil, parseErr("pv", fragment, errors.New("malformed pv"))
	}
	moves := Tokenize(fragment[len(prefix):], ' ')
	if moves == nil {
		moves = []string{}
	}
	return moves, nil
}

// Tokenize splits s at every delim, dropping the empty tokens produced by
// repeated, leading or trailing delimiters.
func Tokenize(s string, delim rune) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == delim })
}

func firstIndex(fields []string, name string) int {
	for i, f := range fields {
		if f == name {
			return i
		}
	}
	return -1
}

func lastIndex(fields []string, name string) int {
	for i := len(fields) - 1; i >= 0; i-- {
		if fields[i] == name {
			return i
		}
	}
	return -1
}

func fragment(fields []string, at, n int) string {
	end := at + n
	if end > len(fields) {
		end = len(fields)
	}
	return strings.Join(fields[at:end], " ")
}

func intValue(fields []string, at int) (int, error) {
	if at+1 >= len(fields) {
		return 0, errMissingValue
	}
	return strconv.Atoi(fields[at+1])
}

func uintValue(fields []string, at int) (uint64, error) {
	if at+1 >= len(fields) {
		return 0, errMissingValue
	}
	return strconv.ParseUint(fields[at+1], 10, 64)
}
