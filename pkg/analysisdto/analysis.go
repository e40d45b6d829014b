package analysisdto

import (
	"encoding/json"
	"time"
)

type AnalyzeRequest struct {
	FEN        string   `json:"fen,omitempty"`
	Moves      []string `json:"moves,omitempty"`
	SAN        string   `json:"san,omitempty"`
	Lines      int      `json:"lines,omitempty"`
	MaxElo     int      `json:"max_elo,omitempty"`
	MoveTimeMS int64    `json:"movetime_ms,omitempty"`
}

// LineDTO is one ranked continuation. Evaluation uses the engine score
// encoding: exactly one of cp, cp_lower, cp_upper, white_mate_in,
// black_mate_in.
type LineDTO struct {
	Moves      []string        `json:"moves"`
	SAN        []string        `json:"san,omitempty"`
	Evaluation json.RawMessage `json:"evaluation"`
	Display    string          `json:"display"`
}

type AnalysisResponse struct {
	ID           string          `json:"id"`
	FEN          string          `json:"fen,omitempty"`
	Moves        []string        `json:"moves"`
	Lines        []LineDTO       `json:"lines"`
	Evaluation   json.RawMessage `json:"evaluation"`
	Display      string          `json:"display"`
	Engine       string          `json:"engine,omitempty"`
	OpeningCode  string          `json:"opening_code,omitempty"`
	OpeningTitle string          `json:"opening_title,omitempty"`
	MoveTimeMS   int64           `json:"movetime_ms"`
	DurationMS   int64           `json:"duration_ms"`
	Cached       bool            `json:"cached"`
	CreatedAt    time.Time       `json:"created_at"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
