package uci

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type State int

const (
	StateUninitialized State = iota
	StateReady
	StateCalculating
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateCalculating:
		return "calculating"
	case StateClosed:
		return "closed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

type Options struct {
	// BestLines is the number of ranked lines (MultiPV) to compute. Zero means 1.
	BestLines int
	// MaxElo caps engine strength through UCI_LimitStrength. Zero means no cap.
	MaxElo int
}

func (o Options) withDefaults() Options {
	if o.BestLines == 0 {
		o.BestLines = 1
	}
	return o
}

func validateOptions(o Options) error {
	if o.BestLines <= 0 {
		return fmt.Errorf("best lines must be > 0: %d", o.BestLines)
	}
	if o.MaxElo < 0 {
		return fmt.Errorf("max elo must be >= 0: %d", o.MaxElo)
	}
	return nil
}

// EngineID is what the engine reported about itself during the handshake.
type EngineID struct {
	Name   string
	Author string
}

// Position is the game state handed to the engine: a FEN (empty for the
// standard start position) followed by moves in long algebraic notation.
type Position struct {
	FEN   string
	Moves []string
}

func (p Position) Command() string {
	var sb strings.Builder
	if strings.TrimSpace(p.FEN) == "" || p.FEN == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(p.FEN)
	}
	if len(p.Moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(p.Moves, " "))
	}
	return sb.String()
}

// Session drives one engine over its Conn. It is meant for a single owner;
// calls must not overlap.
type Session struct {
	conn   Conn
	opt    Options
	logger *zap.Logger

	id    EngineID
	state State
	lines []AnalyzedLine
}

// Start spawns the engine executable at path and completes the UCI handshake.
func Start(ctx context.Context, path string, opt Options, logger *zap.Logger) (*Session, error) {
	if err := validateOptions(opt.withDefaults()); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	proc, err := Spawn(path)
	if err != nil {
		return nil, err
	}
	return NewSession(ctx, proc, opt, logger.With(zap.String("engine", path), zap.Int("pid", proc.Pid())))
}

// NewSession takes ownership of conn and performs the UCI handshake on it.
// conn is closed if the handshake fails.
func NewSession(ctx context.Context, conn Conn, opt Options, logger *zap.Logger) (*Session, error) {
	opt = opt.withDefaults()
	if err := validateOptions(opt); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		conn:   conn,
		opt:    opt,
		logger: logger,
		state:  StateUninitialized,
	}
	if err := s.do(ctx, s.initialize); err != nil {
		s.Close()
		return nil, err
	}
	s.state = StateReady
	s.logger.Info("uci engine ready",
		zap.String("name", s.id.Name),
		zap.String("author", s.id.Author),
		zap.Int("best_lines", s.opt.BestLines),
		zap.Int("max_elo", s.opt.MaxElo))
	return s, nil
}

func (s *Session) State() State { return s.state }

func (s *Session) Options() Options { return s.opt }

func (s *Session) ID() EngineID { return s.id }

func (s *Session) IsCalculating() bool { return s.state == StateCalculating }

// Reset stops any calculation and sets up the standard start position.
func (s *Session) Reset(ctx context.Context) error {
	return s.Setup(ctx, Position{})
}

func (s *Session) SetupFEN(ctx context.Context, fen string) error {
	return s.Setup(ctx, Position{FEN: fen})
}

func (s *Session) SetupMoves(ctx context.Context, moves []string) error {
	return s.Setup(ctx, Position{Moves: moves})
}

// Setup stops any calculation, drops the stored lines and loads pos into the
// engine as a new game.
func (s *Session) Setup(ctx context.Context, pos Position) error {
	return s.do(ctx, func() error {
		if err := s.stop(); err != nil {
			return err
		}
		s.lines = nil
		if err := s.send("ucinewgame"); err != nil {
			return err
		}
		if err := s.send(pos.Command()); err != nil {
			return err
		}
		return s.awaitReady()
	})
}

// StartCalculating starts a search on the current position, stopping a
// running one first. A positive limit is sent as movetime; otherwise the
// engine searches until StopCalculating.
func (s *Session) StartCalculating(ctx context.Context, limit time.Duration) error {
	return s.do(ctx, func() error {
		if err := s.stop(); err != nil {
			return err
		}
		cmd := "go infinite"
		if limit > 0 {
			ms := limit.Milliseconds()
			if ms < 1 {
				ms = 1
			}
			cmd = "go movetime " + strconv.FormatInt(ms, 10)
		}
		if err := s.send(cmd); err != nil {
			return err
		}
		s.state = StateCalculating
		return nil
	})
}

// StopCalculating ends the running search and stores its final lines. It
// blocks until the engine answers with bestmove. Without a running search it
// does nothing.
func (s *Session) StopCalculating(ctx context.Context) error {
	if s.state == StateReady {
		return nil
	}
	return s.do(ctx, s.stop)
}

// EnsureReady checks that an idle engine still answers isready.
func (s *Session) EnsureReady(ctx context.Context) error {
	if s.state == StateCalculating {
		return errors.New("uci: calculation in progress")
	}
	return s.do(ctx, s.awaitReady)
}

// Evaluation returns the evaluation of the best line of the last search.
func (s *Session) Evaluation() (Evaluation, error) {
	if len(s.lines) == 0 {
		return Evaluation{}, ErrNoResult
	}
	return s.lines[0].Evaluation, nil
}

// TopLines returns the lines of the last search, best first.
func (s *Session) TopLines() []AnalyzedLine {
	out := make([]AnalyzedLine, len(s.lines))
	for i, l := range s.lines {
		out[i] = AnalyzedLine{Moves: append([]string(nil), l.Moves...), Evaluation: l.Evaluation}
	}
	return out
}

// Close kills the engine. The session cannot be used afterwards.
func (s *Session) Close() error {
	s.state = StateClosed
	s.lines = nil
	return s.conn.Close()
}

func (s *Session) initialize() error {
	if err := s.send("uci"); err != nil {
		return err
	}
	replies, err := ReadUCIReplies(s.conn)
	s.logReplies(replies)
	if err != nil {
		return err
	}
	if err := expectLast(replies, "uci", "uciok"); err != nil {
		return err
	}
	s.id = parseEngineID(replies)

	if err := s.send(fmt.Sprintf("setoption name MultiPV value %d", s.opt.BestLines)); err != nil {
		return err
	}
	if s.opt.MaxElo > 0 {
		if err := s.send("setoption name UCI_LimitStrength value true"); err != nil {
			return err
		}
		if err := s.send(fmt.Sprintf("setoption name UCI_Elo value %d", s.opt.MaxElo)); err != nil {
			return err
		}
	}
	return s.awaitReady()
}

func (s *Session) stop() error {
	if s.state != StateCalculating {
		return nil
	}
	if err := s.send("stop"); err != nil {
		return err
	}
	replies, err := ReadGoReplies(s.conn)
	s.logReplies(replies)
	s.state = StateReady
	if err != nil {
		return err
	}

	lines, err := extractLines(replies, s.opt.BestLines, s.logger)
	if err != nil {
		s.lines = nil
		return fmt.Errorf("extract lines: %w", err)
	}
	s.lines = lines
	return nil
}

func (s *Session) awaitReady() error {
	if err := s.send("isready"); err != nil {
		return err
	}
	replies, err := ReadIsReadyReplies(s.conn)
	s.logReplies(replies)
	if err != nil {
		return err
	}
	return expectLast(replies, "isready", "readyok")
}

var afterFunc = context.AfterFunc

// do runs op with ctx armed to close the channel, which unblocks any pending
// read. Protocol violations and cancellation during op leave the session
// closed; a cancellation that lands after op returned does not.
func (s *Session) do(ctx context.Context, op func() error) error {
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		mu          sync.Mutex
		finished    bool
		interrupted bool
	)
	stop := afterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		if finished {
			return
		}
		interrupted = true
		_ = s.conn.Close()
	})
	err := op()
	mu.Lock()
	finished = true
	cut := interrupted
	mu.Unlock()
	stop()

	if cut {
		s.teardown(ctx.Err())
		if err == nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}

	var perr *ProtocolError
	if errors.As(err, &perr) {
		s.teardown(err)
	}
	return err
}

func (s *Session) teardown(cause error) {
	s.logger.Warn("uci session closed", zap.Stringer("state", s.state), zap.Error(cause))
	_ = s.Close()
}

func (s *Session) send(cmd string) error {
	s.logger.Debug("uci send", zap.String("cmd", cmd))
	if err := s.conn.WriteLine(cmd); err != nil {
		return &ProtocolError{Command: cmd, Err: err}
	}
	return nil
}

func (s *Session) logReplies(replies []string) {
	if ce := s.logger.Check(zap.DebugLevel, "uci recv"); ce == nil {
		return
	}
	for _, line := range replies {
		s.logger.Debug("uci recv", zap.String("line", line))
	}
}

func expectLast(replies []string, command, want string) error {
	if len(replies) == 0 {
		return &ProtocolError{Command: command, Expected: want}
	}
	if last := replies[len(replies)-1]; last != want {
		return &ProtocolError{Command: command, Expected: want, Got: last}
	}
	return nil
}

func parseEngineID(replies []string) EngineID {
	var id EngineID
	for _, line := range replies {
		switch {
		case strings.HasPrefix(line, "id name "):
			id.Name = strings.TrimSpace(strings.TrimPrefix(line, "id name "))
		case strings.HasPrefix(line, "id author "):
			id.Author = strings.TrimSpace(strings.TrimPrefix(line, "id author "))
		}
	}
	return id
}
