package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-uci/internal/notation"
	"github.com/park285/chess-uci/internal/uci"
)

// SessionPool hands out ready engine sessions. *uci.Pool implements it.
type SessionPool interface {
	Acquire(ctx context.Context, opt uci.Options) (*uci.Session, error)
	Release(session *uci.Session, err error)
}

// Cache stores finished reports by Report.Key. Get returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*Report, error)
	Put(ctx context.Context, report *Report) error
}

type Repository interface {
	Save(ctx context.Context, report *Report) error
	Get(ctx context.Context, id string) (*Report, error)
}

type Config struct {
	DefaultLines    int
	MaxLines        int
	DefaultMaxElo   int
	DefaultMoveTime time.Duration
	MaxMoveTime     time.Duration
}

const (
	defaultLines    = 1
	defaultMaxLines = 16
	defaultMoveTime = time.Second
	defaultMaxTime  = 30 * time.Second
)

type Service struct {
	pool   SessionPool
	cache  Cache
	repo   Repository
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires the analysis flow. cache may be nil; repo nil means an
// in-memory repository.
func NewService(pool SessionPool, cache Cache, repo Repository, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if repo == nil {
		repo = NewMemoryRepository()
	}
	if cfg.DefaultLines <= 0 {
		cfg.DefaultLines = defaultLines
	}
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = defaultMaxLines
	}
	if cfg.DefaultMoveTime <= 0 {
		cfg.DefaultMoveTime = defaultMoveTime
	}
	if cfg.MaxMoveTime <= 0 {
		cfg.MaxMoveTime = defaultMaxTime
	}
	return &Service{
		pool:   pool,
		cache:  cache,
		repo:   repo,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

type normalized struct {
	fen      string
	moves    []string
	lines    int
	maxElo   int
	moveTime time.Duration
	afterFEN string
}

func (s *Service) normalize(req Request) (normalized, error) {
	n := normalized{
		fen:      req.FEN,
		lines:    req.Lines,
		maxElo:   req.MaxElo,
		moveTime: req.MoveTime,
	}
	if notation.IsStartPos(n.fen) {
		n.fen = ""
	}
	if n.lines == 0 {
		n.lines = s.cfg.DefaultLines
	}
	if n.lines < 0 || n.lines > s.cfg.MaxLines {
		return n, fmt.Errorf("%w: lines must be between 1 and %d", ErrInvalidRequest, s.cfg.MaxLines)
	}
	if n.maxElo == 0 {
		n.maxElo = s.cfg.DefaultMaxElo
	}
	if n.maxElo < 0 {
		return n, fmt.Errorf("%w: max elo must not be negative", ErrInvalidRequest)
	}
	if n.moveTime == 0 {
		n.moveTime = s.cfg.DefaultMoveTime
	}
	if n.moveTime < 0 || n.moveTime > s.cfg.MaxMoveTime {
		return n, fmt.Errorf("%w: movetime must be between 1ms and %s", ErrInvalidRequest, s.cfg.MaxMoveTime)
	}
	if err := notation.ValidateFEN(n.fen); err != nil {
		return n, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	switch {
	case req.SAN != "" && len(req.Moves) > 0:
		return n, fmt.Errorf("%w: moves and san are mutually exclusive", ErrInvalidRequest)
	case req.SAN != "":
		moves, err := notation.SANToLAN(n.fen, notation.ParseMovetext(req.SAN))
		if err != nil {
			return n, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		n.moves = moves
	default:
		n.moves = append([]string(nil), req.Moves...)
	}

	game, err := notation.BuildGame(n.fen, n.moves)
	if err != nil {
		return n, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	n.afterFEN = game.FEN()
	return n, nil
}

// Analyze runs the engine on req and stores the report. Identical requests
// within the cache TTL are answered from the cache.
func (s *Service) Analyze(ctx context.Context, req Request) (*Report, error) {
	n, err := s.normalize(req)
	if err != nil {
		return nil, err
	}
	key := cacheKey(n.fen, n.moves, n.lines, n.maxElo, n.moveTime.Milliseconds())
	logger := s.logger.With(zap.String("key", key))

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			logger.Warn("analysis cache lookup failed", zap.Error(err))
		} else if cached != nil {
			cached.Cached = true
			logger.Debug("analysis served from cache", zap.String("id", cached.ID))
			return cached, nil
		}
	}

	report, err := s.search(ctx, n, logger)
	if err != nil {
		return nil, err
	}
	report.Key = key

	if s.cache != nil {
		if err := s.cache.Put(ctx, report); err != nil {
			logger.Warn("analysis cache store failed", zap.Error(err))
		}
	}
	if err := s.repo.Save(ctx, report); err != nil {
		logger.Warn("analysis report save failed", zap.String("id", report.ID), zap.Error(err))
	}
	return report, nil
}

func (s *Service) search(ctx context.Context, n normalized, logger *zap.Logger) (report *Report, err error) {
	session, err := s.pool.Acquire(ctx, uci.Options{BestLines: n.lines, MaxElo: n.maxElo})
	if err != nil {
		return nil, fmt.Errorf("acquire engine: %w", err)
	}
	defer func() { s.pool.Release(session, err) }()

	started := s.now()
	if err := session.Setup(ctx, uci.Position{FEN: n.fen, Moves: n.moves}); err != nil {
		return nil, fmt.Errorf("setup position: %w", err)
	}
	// searched open-ended; the timer below ends it with stop
	if err := session.StartCalculating(ctx, 0); err != nil {
		return nil, fmt.Errorf("start search: %w", err)
	}

	timer := time.NewTimer(n.moveTime)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := session.StopCalculating(ctx); err != nil {
		return nil, fmt.Errorf("stop search: %w", err)
	}
	ev, err := session.Evaluation()
	if err != nil {
		return nil, err
	}

	report = &Report{
		ID:         uuid.NewString(),
		FEN:        n.fen,
		Moves:      n.moves,
		Lines:      n.lines,
		MaxElo:     n.maxElo,
		MoveTime:   n.moveTime,
		Engine:     session.ID().Name,
		Evaluation: ev,
		Duration:   s.now().Sub(started),
		CreatedAt:  s.now().UTC(),
	}
	report.OpeningCode, report.OpeningTitle = notation.Opening(n.fen, n.moves)
	for _, l := range session.TopLines() {
		san, serr := notation.LANToSAN(n.afterFEN, l.Moves)
		if serr != nil {
			logger.Debug("engine line not renderable as san", zap.Strings("moves", l.Moves), zap.Error(serr))
			san = nil
		}
		report.TopLines = append(report.TopLines, Line{Moves: l.Moves, SAN: san, Evaluation: l.Evaluation})
	}

	logger.Info("analysis complete",
		zap.String("id", report.ID),
		zap.Int("lines", len(report.TopLines)),
		zap.Stringer("evaluation", report.Evaluation),
		zap.Duration("took", report.Duration))
	return report, nil
}

// Lookup returns a stored report by ID.
func (s *Service) Lookup(ctx context.Context, id string) (*Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	report, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load report %s: %w", id, err)
	}
	return report, nil
}
