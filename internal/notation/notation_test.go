package notation

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseMovetext(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"1. e4 e5 2. Nf3 Nc6 1-0", []string{"e4", "e5", "Nf3", "Nc6"}},
		{"1.e4 c5 2.Nf3 {Sicilian} d6!? $1 *", []string{"e4", "c5", "Nf3", "d6"}},
		{"12... Qxd5+ 13. O-O", []string{"Qxd5+", "O-O"}},
		{"  ", nil},
	}
	for _, tc := range cases {
		got := ParseMovetext(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ParseMovetext(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSANToLAN(t *testing.T) {
	got, err := SANToLAN("", []string{"e4", "e5", "Nf3", "Nc6", "Bb5"})
	if err != nil {
		t.Fatalf("SANToLAN: %v", err)
	}
	want := []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SANToLAN = %q, want %q", got, want)
	}
}

func TestSANToLANIllegal(t *testing.T) {
	if _, err := SANToLAN("", []string{"e5"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("err = %v, want ErrIllegalMove", err)
	}
}

func TestLANToSAN(t *testing.T) {
	got, err := LANToSAN("", []string{"e2e4", "e7e5", "g1f3"})
	if err != nil {
		t.Fatalf("LANToSAN: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"e4", "e5", "Nf3"}) {
		t.Fatalf("LANToSAN = %q", got)
	}
}

func TestValidateFEN(t *testing.T) {
	if err := ValidateFEN(""); err != nil {
		t.Fatalf("empty fen: %v", err)
	}
	if err := ValidateFEN("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"); err != nil {
		t.Fatalf("valid fen: %v", err)
	}
	if err := ValidateFEN("not a fen"); err == nil {
		t.Fatalf("expected error for invalid fen")
	}
}

func TestBuildGameFromFEN(t *testing.T) {
	fen := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	if _, err := BuildGame(fen, []string{"e7e5"}); err != nil {
		t.Fatalf("BuildGame: %v", err)
	}
	if _, err := BuildGame(fen, []string{"e2e4"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("err = %v, want ErrIllegalMove", err)
	}
}

func TestOpening(t *testing.T) {
	code, title := Opening("", []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5"})
	if code == "" || title == "" {
		t.Fatalf("no opening found for the Ruy Lopez")
	}
	if code, _ := Opening("8/8/8/8/8/8/8/K1k5 w - - 0 1", nil); code != "" {
		t.Fatalf("opening reported for a non-initial position: %q", code)
	}
}
