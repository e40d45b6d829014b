package uci

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

type scoreKind uint8

const (
	scoreNone scoreKind = iota
	scoreExact
	scoreLowerBound
	scoreUpperBound
	scoreWhiteMate
	scoreBlackMate
)

// Evaluation is an engine score. It holds exactly one of: an exact centipawn
// value, a centipawn lower bound, a centipawn upper bound, or a mate distance
// for white or black. The zero value holds nothing.
type Evaluation struct {
	kind  scoreKind
	value int
}

func Exact(cp int) Evaluation { return Evaluation{kind: scoreExact, value: cp} }

func Lower(cp int) Evaluation { return Evaluation{kind: scoreLowerBound, value: cp} }

func Upper(cp int) Evaluation { return Evaluation{kind: scoreUpperBound, value: cp} }

// WhiteMate reports that white can mate in at most n moves.
func WhiteMate(n uint) Evaluation { return Evaluation{kind: scoreWhiteMate, value: int(n)} }

// BlackMate reports that black can mate in at most n moves.
func BlackMate(n uint) Evaluation { return Evaluation{kind: scoreBlackMate, value: int(n)} }

func (e Evaluation) IsZero() bool { return e.kind == scoreNone }

func (e Evaluation) Centipawns() (int, bool) { return e.value, e.kind == scoreExact }

func (e Evaluation) LowerBound() (int, bool) { return e.value, e.kind == scoreLowerBound }

func (e Evaluation) UpperBound() (int, bool) { return e.value, e.kind == scoreUpperBound }

func (e Evaluation) WhiteMateIn() (uint, bool) { return uint(e.value), e.kind == scoreWhiteMate }

func (e Evaluation) BlackMateIn() (uint, bool) { return uint(e.value), e.kind == scoreBlackMate }

// String renders the evaluation the way analysis output prints it,
// e.g. "+1.25", "-0.05", ">= +2.34", "White mate in 3".
func (e Evaluation) String() string {
	switch e.kind {
	case scoreExact:
		return formatCentipawns(e.value)
	case scoreLowerBound:
		return ">= " + formatCentipawns(e.value)
	case scoreUpperBound:
		return "<= " + formatCentipawns(e.value)
	case scoreWhiteMate:
		return "White mate in " + strconv.Itoa(e.value)
	case scoreBlackMate:
		return "Black mate in " + strconv.Itoa(e.value)
	default:
		return "?"
	}
}

func formatCentipawns(cp int) string {
	if cp == 0 {
		return "0.00"
	}
	sign := "+"
	if cp < 0 {
		sign = "-"
		cp = -cp
	}
	return fmt.Sprintf("%s%d.%02d", sign, cp/100, cp%100)
}

type evaluationJSON struct {
	CP          *int  `json:"cp,omitempty"`
	CPLower     *int  `json:"cp_lower,omitempty"`
	CPUpper     *int  `json:"cp_upper,omitempty"`
	WhiteMateIn *uint `json:"white_mate_in,omitempty"`
	BlackMateIn *uint `json:"black_mate_in,omitempty"`
}

func (e Evaluation) MarshalJSON() ([]byte, error) {
	var out evaluationJSON
	v := e.value
	n := uint(e.value)
	switch e.kind {
	case scoreNone:
		return []byte("null"), nil
	case scoreExact:
		out.CP = &v
	case scoreLowerBound:
		out.CPLower = &v
	case scoreUpperBound:
		out.CPUpper = &v
	case scoreWhiteMate:
		out.WhiteMateIn = &n
	case scoreBlackMate:
		out.BlackMateIn = &n
	}
	return json.Marshal(out)
}

func (e *Evaluation) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*e = Evaluation{}
		return nil
	}
	var in evaluationJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	var (
		out Evaluation
		set int
	)
	if in.CP != nil {
		out, set = Exact(*in.CP), set+1
	}
	if in.CPLower != nil {
		out, set = Lower(*in.CPLower), set+1
	}
	if in.CPUpper != nil {
		out, set = Upper(*in.CPUpper), set+1
	}
	if in.WhiteMateIn != nil {
		out, set = WhiteMate(*in.WhiteMateIn), set+1
	}
	if in.BlackMateIn != nil {
		out, set = BlackMate(*in.BlackMateIn), set+1
	}
	if set > 1 {
		return errors.New("evaluation: more than one score field set")
	}
	*e = out
	return nil
}

// AnalyzedLine is one suggested continuation: moves in long algebraic
// notation plus the evaluation of the resulting position.
type AnalyzedLine struct {
	Moves      []string   `json:"moves"`
	Evaluation Evaluation `json:"evaluation"`
}
