package analysis

import (
	"errors"
	"time"

	"github.com/park285/chess-uci/internal/uci"
)

var (
	ErrInvalidRequest = errors.New("invalid analysis request")
	ErrReportNotFound = errors.New("analysis report not found")
)

// Request describes one position to analyse. The position is FEN (empty for
// the start position) followed by either Moves in long algebraic notation or
// SAN movetext, not both.
type Request struct {
	FEN      string
	Moves    []string
	SAN      string
	Lines    int
	MaxElo   int
	MoveTime time.Duration
}

type Line struct {
	Moves      []string       `json:"moves"`
	SAN        []string       `json:"san,omitempty"`
	Evaluation uci.Evaluation `json:"evaluation"`
}

// Report is the outcome of one engine search.
type Report struct {
	ID           string         `json:"id"`
	Key          string         `json:"key"`
	FEN          string         `json:"fen"`
	Moves        []string       `json:"moves"`
	Lines        int            `json:"lines"`
	MaxElo       int            `json:"max_elo,omitempty"`
	MoveTime     time.Duration  `json:"movetime"`
	Engine       string         `json:"engine,omitempty"`
	OpeningCode  string         `json:"opening_code,omitempty"`
	OpeningTitle string         `json:"opening_title,omitempty"`
	Evaluation   uci.Evaluation `json:"evaluation"`
	TopLines     []Line         `json:"top_lines"`
	Duration     time.Duration  `json:"duration"`
	CreatedAt    time.Time      `json:"created_at"`

	// Cached is set on reports served from the cache and never stored.
	Cached bool `json:"-"`
}

func (r *Report) clone() *Report {
	if r == nil {
		return nil
	}
	out := *r
	out.Moves = append([]string(nil), r.Moves...)
	out.TopLines = make([]Line, len(r.TopLines))
	for i, l := range r.TopLines {
		out.TopLines[i] = Line{
			Moves:      append([]string(nil), l.Moves...),
			SAN:        append([]string(nil), l.SAN...),
			Evaluation: l.Evaluation,
		}
	}
	return &out
}
