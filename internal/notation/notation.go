// Package notation converts between the move notations users type and the
// long algebraic moves the engine protocol expects.
package notation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	chesslib "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

var ErrIllegalMove = errors.New("illegal move")

// IsStartPos reports whether fen names the standard initial position.
func IsStartPos(fen string) bool {
	fen = strings.TrimSpace(fen)
	return fen == "" || fen == "startpos"
}

// ValidateFEN rejects strings that do not describe a position.
func ValidateFEN(fen string) error {
	if IsStartPos(fen) {
		return nil
	}
	if _, err := chesslib.FEN(fen); err != nil {
		return fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return nil
}

// BuildGame sets up fen (empty for the start position) and plays the given
// long algebraic moves on it.
func BuildGame(fen string, moves []string) (*chesslib.Game, error) {
	var game *chesslib.Game
	if IsStartPos(fen) {
		game = chesslib.NewGame()
	} else {
		option, err := chesslib.FEN(fen)
		if err != nil {
			return nil, fmt.Errorf("parse fen %q: %w", fen, err)
		}
		game = chesslib.NewGame(option)
	}

	for _, mv := range moves {
		if err := game.PushNotationMove(mv, chesslib.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrIllegalMove, mv, err)
		}
	}
	return game, nil
}

// SANToLAN plays san from fen and returns the same moves in long algebraic
// notation.
func SANToLAN(fen string, san []string) ([]string, error) {
	game, err := BuildGame(fen, nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(san))
	for _, text := range san {
		pos := game.Position()
		mv, err := chesslib.AlgebraicNotation{}.Decode(pos, text)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrIllegalMove, text, err)
		}
		out = append(out, chesslib.UCINotation{}.Encode(pos, mv))
		if err := game.Move(mv, nil); err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrIllegalMove, text, err)
		}
	}
	return out, nil
}

// LANToSAN renders moves played from fen in standard algebraic notation.
func LANToSAN(fen string, moves []string) ([]string, error) {
	game, err := BuildGame(fen, nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(moves))
	for _, text := range moves {
		pos := game.Position()
		mv, err := chesslib.UCINotation{}.Decode(pos, strings.ToLower(text))
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrIllegalMove, text, err)
		}
		out = append(out, chesslib.AlgebraicNotation{}.Encode(pos, mv))
		if err := game.Move(mv, nil); err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrIllegalMove, text, err)
		}
	}
	return out, nil
}

// Opening names the ECO opening reached by moves from the start position.
// Games set up from another FEN have no opening.
func Opening(fen string, moves []string) (code, title string) {
	if !IsStartPos(fen) || len(moves) == 0 {
		return "", ""
	}
	game, err := BuildGame("", moves)
	if err != nil {
		return "", ""
	}
	book := opening.NewBookECO()
	if book == nil {
		return "", ""
	}
	if eco := book.Find(game.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}

var (
	commentRE    = regexp.MustCompile(`\{[^}]*\}|;[^\n]*`)
	moveNumberRE = regexp.MustCompile(`^\d+\.+`)
)

// ParseMovetext splits PGN-style movetext such as "1. e4 e5 2. Nf3 {main} 1-0"
// into bare SAN moves. Move numbers, comments, NAGs, annotation glyphs and
// the game result are dropped. Variations in parentheses are not supported.
func ParseMovetext(text string) []string {
	text = commentRE.ReplaceAllString(text, " ")
	var out []string
	for _, tok := range strings.Fields(text) {
		tok = moveNumberRE.ReplaceAllString(tok, "")
		tok = strings.TrimRight(tok, "!?")
		switch {
		case tok == "":
		case strings.HasPrefix(tok, "$"):
		case tok == "1-0", tok == "0-1", tok == "1/2-1/2", tok == "*":
		default:
			out = append(out, tok)
		}
	}
	return out
}
