package analysis

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// cacheKey identifies a search by everything that influences its result.
func cacheKey(fen string, moves []string, lines, maxElo int, moveTimeMS int64) string {
	d := xxhash.New()
	_, _ = d.WriteString(strings.TrimSpace(fen))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(strings.Join(moves, " "))
	_, _ = fmt.Fprintf(d, "|lines=%d|elo=%d|ms=%d", lines, maxElo, moveTimeMS)
	return fmt.Sprintf("%016x", d.Sum64())
}
