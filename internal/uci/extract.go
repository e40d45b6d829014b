package uci

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// extractLines builds the ranked result set from the replies to a search,
// which end with the bestmove line.
//
// Engines repeat the report for every rank as depth grows, so only the last
// report per rank is wanted. The replies are scanned backwards and the first
// report seen for each rank is kept until n ranks are filled.
func extractLines(replies []string, n int, logger *zap.Logger) ([]AnalyzedLine, error) {
	lines := make([]AnalyzedLine, n)
	filled := make([]bool, n)
	found := 0

	for i := len(replies) - 2; i >= 0 && found < n; i-- {
		line := replies[i]
		if !isSearchInfo(line) {
			continue
		}
		info, err := ParseInfo(line)
		if err != nil {
			return nil, err
		}
		if info.Evaluation == nil && info.LineIndex == nil && info.Moves == nil {
			// progress line such as currmove, hashfull or nps
			continue
		}
		if info.Evaluation == nil || info.LineIndex == nil || info.Moves == nil {
			logger.DPanic("uci info line without score, multipv or pv", zap.String("line", line))
			return nil, fmt.Errorf("%w: %q", ErrIncompleteInfo, line)
		}
		idx := *info.LineIndex
		if idx >= n {
			return nil, &ProtocolError{
				Command:  "go",
				Expected: fmt.Sprintf("multipv <= %d", n),
				Got:      line,
			}
		}
		if filled[idx] {
			continue
		}
		lines[idx] = AnalyzedLine{Moves: info.Moves, Evaluation: *info.Evaluation}
		filled[idx] = true
		found++
	}

	if found == n {
		return lines, nil
	}

	// Fewer ranks than requested: the engine had fewer candidate moves.
	// Keep the contiguous prefix of ranks that were reported.
	k := 0
	for k < n && filled[k] {
		k++
	}
	if k == 0 {
		bestmove := ""
		if len(replies) > 0 {
			bestmove = replies[len(replies)-1]
		}
		return nil, &ProtocolError{Command: "go", Expected: "info line for multipv 1", Got: bestmove}
	}
	logger.Debug("uci search reported fewer lines than requested",
		zap.Int("requested", n), zap.Int("reported", k))
	return lines[:k], nil
}

func isSearchInfo(line string) bool {
	if !strings.HasPrefix(line, "info") {
		return false
	}
	return !strings.HasPrefix(line, "info string")
}
