package uci_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-uci/internal/uci"
)

const shellEngine = `#!/bin/sh
while read -r cmd; do
  case "$cmd" in
    uci) echo "id name Shell engine"; echo "id author Test"; echo "uciok" ;;
    isready) echo "readyok" ;;
    go*) echo "info depth 1 multipv 1 score cp 30 nodes 20 time 1 pv e2e4" ;;
    stop) echo "bestmove e2e4" ;;
    quit) exit 0 ;;
  esac
done
`

func writeShellEngine(t *testing.T) string {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "engine.sh")
	if err := os.WriteFile(path, []byte(shellEngine), 0o755); err != nil {
		t.Fatalf("write engine: %v", err)
	}
	return path
}

func TestStartSpawnsEngineProcess(t *testing.T) {
	path := writeShellEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := uci.Start(ctx, path, uci.Options{}, zap.NewNop())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	if s.ID().Name != "Shell engine" {
		t.Fatalf("ID = %+v", s.ID())
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := s.StartCalculating(ctx, 0); err != nil {
		t.Fatalf("StartCalculating: %v", err)
	}
	if err := s.StopCalculating(ctx); err != nil {
		t.Fatalf("StopCalculating: %v", err)
	}
	ev, err := s.Evaluation()
	if err != nil {
		t.Fatalf("Evaluation: %v", err)
	}
	if cp, ok := ev.Centipawns(); !ok || cp != 30 {
		t.Fatalf("evaluation = %v", ev)
	}
}

func TestSpawnRequiresPath(t *testing.T) {
	if _, err := uci.Spawn(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := uci.Spawn(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing executable")
	}
}

func TestProcessCloseIsIdempotent(t *testing.T) {
	path := writeShellEngine(t)
	p, err := uci.Spawn(path)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if p.Pid() == 0 {
		t.Fatalf("Pid = 0")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
