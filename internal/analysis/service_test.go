package analysis

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-uci/internal/uci"
	"github.com/park285/chess-uci/internal/uci/fakeengine"
)

func newTestPool(t *testing.T, e func() *fakeengine.Engine) *uci.Pool {
	t.Helper()
	p, err := uci.NewPool(uci.PoolConfig{
		PerOptionsCapacity: 2,
		Start: func(ctx context.Context, opt uci.Options) (*uci.Session, error) {
			return uci.NewSession(ctx, fakeengine.Connect(e()), opt, zap.NewNop())
		},
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb, time.Minute), mr
}

func newTestService(t *testing.T, cache Cache) (*Service, *MemoryRepository) {
	t.Helper()
	pool := newTestPool(t, func() *fakeengine.Engine { return &fakeengine.Engine{} })
	repo := NewMemoryRepository()
	svc := NewService(pool, cache, repo, Config{DefaultMoveTime: 10 * time.Millisecond}, zap.NewNop())
	return svc, repo
}

func TestAnalyzeStartPosition(t *testing.T) {
	svc, repo := newTestService(t, nil)
	ctx := context.Background()

	report, err := svc.Analyze(ctx, Request{Lines: 2})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.ID == "" || report.Key == "" {
		t.Fatalf("report without id or key: %+v", report)
	}
	if report.Engine != "Fake engine" {
		t.Fatalf("Engine = %q", report.Engine)
	}
	if cp, ok := report.Evaluation.Centipawns(); !ok || cp != 30 {
		t.Fatalf("Evaluation = %v", report.Evaluation)
	}
	if len(report.TopLines) != 2 {
		t.Fatalf("TopLines = %+v", report.TopLines)
	}
	if !reflect.DeepEqual(report.TopLines[0].Moves, []string{"e2e4"}) || !reflect.DeepEqual(report.TopLines[0].SAN, []string{"e4"}) {
		t.Fatalf("line 0 = %+v", report.TopLines[0])
	}
	if !reflect.DeepEqual(report.TopLines[1].SAN, []string{"d4"}) {
		t.Fatalf("line 1 = %+v", report.TopLines[1])
	}

	stored, err := repo.Get(ctx, report.ID)
	if err != nil {
		t.Fatalf("repo.Get: %v", err)
	}
	if stored.Key != report.Key {
		t.Fatalf("stored key %q, want %q", stored.Key, report.Key)
	}

	found, err := svc.Lookup(ctx, report.ID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found.ID != report.ID {
		t.Fatalf("Lookup returned %q", found.ID)
	}
}

func TestAnalyzeSANMovetext(t *testing.T) {
	svc, _ := newTestService(t, nil)
	report, err := svc.Analyze(context.Background(), Request{SAN: "1. e4 e5 2. Nf3 Nc6 3. Bb5"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	want := []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5"}
	if !reflect.DeepEqual(report.Moves, want) {
		t.Fatalf("Moves = %q, want %q", report.Moves, want)
	}
	if report.OpeningCode == "" {
		t.Fatalf("opening not named")
	}
}

func TestAnalyzeServesRepeatFromCache(t *testing.T) {
	cache, mr := newTestCache(t)
	svc, _ := newTestService(t, cache)
	ctx := context.Background()

	first, err := svc.Analyze(ctx, Request{Moves: []string{"e2e4"}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if first.Cached {
		t.Fatalf("first report marked cached")
	}
	if !mr.Exists("analysis:report:" + first.Key) {
		t.Fatalf("report not written to redis")
	}

	second, err := svc.Analyze(ctx, Request{Moves: []string{"e2e4"}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !second.Cached || second.ID != first.ID {
		t.Fatalf("second report not from cache: cached=%v id=%q first=%q", second.Cached, second.ID, first.ID)
	}
	if second.Evaluation != first.Evaluation {
		t.Fatalf("cached evaluation %v, want %v", second.Evaluation, first.Evaluation)
	}

	third, err := svc.Analyze(ctx, Request{Moves: []string{"e2e4"}, Lines: 2})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if third.Cached {
		t.Fatalf("request with other options served from cache")
	}
}

func TestAnalyzeInvalidRequests(t *testing.T) {
	svc, _ := newTestService(t, nil)
	cases := []Request{
		{Lines: -1},
		{Lines: 100},
		{MaxElo: -5},
		{MoveTime: time.Hour},
		{FEN: "not a fen"},
		{Moves: []string{"e2e5"}},
		{SAN: "1. e5"},
		{SAN: "e4", Moves: []string{"e2e4"}},
	}
	for _, req := range cases {
		if _, err := svc.Analyze(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("Analyze(%+v) err = %v, want ErrInvalidRequest", req, err)
		}
	}
}

func TestAnalyzeEngineProtocolError(t *testing.T) {
	pool := newTestPool(t, func() *fakeengine.Engine {
		return &fakeengine.Engine{Lines: func(int) []string { return []string{"info depth 1 nodes 10"} }}
	})
	svc := NewService(pool, nil, nil, Config{DefaultMoveTime: 5 * time.Millisecond}, zap.NewNop())

	_, err := svc.Analyze(context.Background(), Request{})
	var perr *uci.ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *uci.ProtocolError", err)
	}
}

func TestAnalyzeContextCanceled(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Analyze(ctx, Request{MoveTime: 5 * time.Second})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestAnalyzeSearchesUntilStopped(t *testing.T) {
	var engines []*fakeengine.Engine
	pool := newTestPool(t, func() *fakeengine.Engine {
		e := &fakeengine.Engine{}
		engines = append(engines, e)
		return e
	})
	svc := NewService(pool, nil, nil, Config{DefaultMoveTime: 10 * time.Millisecond}, zap.NewNop())

	if _, err := svc.Analyze(context.Background(), Request{}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(engines) != 1 {
		t.Fatalf("started %d engines, want 1", len(engines))
	}
	var goCmds []string
	stopped := false
	for _, cmd := range engines[0].Received() {
		if strings.HasPrefix(cmd, "go") {
			goCmds = append(goCmds, cmd)
		}
		if cmd == "stop" {
			stopped = true
		}
	}
	if !reflect.DeepEqual(goCmds, []string{"go infinite"}) || !stopped {
		t.Fatalf("go commands = %q, stop sent = %v", goCmds, stopped)
	}
}

func TestLookupUnknownReport(t *testing.T) {
	svc, _ := newTestService(t, nil)
	for _, id := range []string{"not-a-uuid", "2f1c5a4e-8c1d-4c55-9d8f-3f5b4c2a1e00"} {
		if _, err := svc.Lookup(context.Background(), id); !errors.Is(err, ErrReportNotFound) {
			t.Fatalf("Lookup(%q) err = %v, want ErrReportNotFound", id, err)
		}
	}
}
