package uci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// StartFunc creates a ready session for opt.
type StartFunc func(ctx context.Context, opt Options) (*Session, error)

type PoolConfig struct {
	BinaryPath         string
	PerOptionsCapacity int
	Logger             *zap.Logger

	// Start overrides how sessions are created. When nil the pool spawns
	// BinaryPath.
	Start StartFunc
}

// Pool keeps warm sessions grouped by Options so that a session is only
// handed to callers that asked for the same MultiPV and strength settings.
type Pool struct {
	start    StartFunc
	capacity int
	logger   *zap.Logger

	mu       sync.Mutex
	closed   bool
	buckets  map[string]*sessionBucket
	sessions map[*Session]*sessionBucket
}

var ErrPoolClosed = errors.New("uci: pool closed")

func NewPool(cfg PoolConfig) (*Pool, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	start := cfg.Start
	if start == nil {
		if cfg.BinaryPath == "" {
			return nil, fmt.Errorf("binary path required")
		}
		if _, err := os.Stat(cfg.BinaryPath); err != nil {
			return nil, fmt.Errorf("engine binary check: %w", err)
		}
		path := cfg.BinaryPath
		start = func(ctx context.Context, opt Options) (*Session, error) {
			return Start(ctx, path, opt, logger)
		}
	}

	capacity := cfg.PerOptionsCapacity
	if capacity <= 0 {
		capacity = defaultPerOptionsCapacity()
	}

	return &Pool{
		start:    start,
		capacity: capacity,
		logger:   logger,
		buckets:  make(map[string]*sessionBucket),
		sessions: make(map[*Session]*sessionBucket),
	}, nil
}

// Acquire returns a ready session configured with opt. Idle sessions are
// checked with isready first; a new one is started while the bucket has room,
// otherwise Acquire waits for a Release, a discarded session or ctx.
func (p *Pool) Acquire(ctx context.Context, opt Options) (*Session, error) {
	opt = opt.withDefaults()
	if err := validateOptions(opt); err != nil {
		return nil, err
	}
	bucket, err := p.getBucket(opt)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case session := <-bucket.idle:
			if s := p.checkIdle(ctx, bucket, session); s != nil {
				return s, nil
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			continue
		default:
		}

		session, err := bucket.create(ctx, p.start)
		if err == nil {
			p.track(session, bucket)
			return session, nil
		}
		if !errors.Is(err, errBucketAtCapacity) {
			return nil, err
		}

		select {
		case session := <-bucket.idle:
			if s := p.checkIdle(ctx, bucket, session); s != nil {
				return s, nil
			}
		case <-bucket.freed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release hands session back. Sessions that failed, are still calculating or
// were closed are shut down instead of being reused.
func (p *Pool) Release(session *Session, err error) {
	if session == nil {
		return
	}

	p.mu.Lock()
	bucket, ok := p.sessions[session]
	if ok {
		delete(p.sessions, session)
	}
	closed := p.closed
	p.mu.Unlock()

	if !ok {
		_ = session.Close()
		return
	}
	if err != nil || closed || session.State() != StateReady {
		p.logger.Debug("uci session discarded",
			zap.String("bucket", bucket.key),
			zap.Stringer("state", session.State()),
			zap.Error(err))
		bucket.discard(session)
		return
	}
	if !bucket.put(session) {
		bucket.discard(session)
	}
}

// Close shuts down idle sessions. Sessions still checked out are closed when
// they are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	buckets := make([]*sessionBucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.mu.Unlock()

	var errs []error
	for _, bucket := range buckets {
		errs = append(errs, bucket.drain()...)
	}
	return errors.Join(errs...)
}

func (p *Pool) checkIdle(ctx context.Context, bucket *sessionBucket, session *Session) *Session {
	if session == nil {
		return nil
	}
	if err := session.EnsureReady(ctx); err != nil {
		p.logger.Warn("uci idle session failed readiness check",
			zap.String("bucket", bucket.key), zap.Error(err))
		bucket.discard(session)
		return nil
	}
	p.track(session, bucket)
	return session
}

func (p *Pool) track(session *Session, bucket *sessionBucket) {
	p.mu.Lock()
	p.sessions[session] = bucket
	p.mu.Unlock()
}

func (p *Pool) getBucket(opt Options) (*sessionBucket, error) {
	key := optionsKey(opt)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	bucket, ok := p.buckets[key]
	if !ok {
		bucket = newSessionBucket(opt, p.capacity)
		p.buckets[key] = bucket
	}
	return bucket, nil
}

type sessionBucket struct {
	key      string
	opt      Options
	capacity int

	mu    sync.Mutex
	total int
	idle  chan *Session
	// freed is signalled when a slot is given up, so a waiter can start a
	// new session.
	freed chan struct{}
}

var errBucketAtCapacity = errors.New("session bucket at capacity")

func newSessionBucket(opt Options, capacity int) *sessionBucket {
	if capacity <= 0 {
		capacity = 1
	}
	return &sessionBucket{
		key:      optionsKey(opt),
		opt:      opt,
		capacity: capacity,
		idle:     make(chan *Session, capacity),
		freed:    make(chan struct{}, 1),
	}
}

func (b *sessionBucket) create(ctx context.Context, start StartFunc) (*Session, error) {
	b.mu.Lock()
	if b.total >= b.capacity {
		b.mu.Unlock()
		return nil, errBucketAtCapacity
	}
	b.total++
	room := b.total < b.capacity
	b.mu.Unlock()
	if room {
		// pass on a wake-up that this caller may have consumed
		b.signalFreed()
	}

	session, err := start(ctx, b.opt)
	if err != nil {
		b.decrement()
		return nil, err
	}
	return session, nil
}

func (b *sessionBucket) put(session *Session) bool {
	select {
	case b.idle <- session:
		return true
	default:
		return false
	}
}

func (b *sessionBucket) discard(session *Session) {
	if session != nil {
		_ = session.Close()
	}
	b.decrement()
}

func (b *sessionBucket) drain() []error {
	var errs []error
	for {
		select {
		case session := <-b.idle:
			if session == nil {
				continue
			}
			if err := session.Close(); err != nil {
				errs = append(errs, err)
			}
			b.decrement()
		default:
			return errs
		}
	}
}

func (b *sessionBucket) decrement() {
	b.mu.Lock()
	if b.total > 0 {
		b.total--
	}
	b.mu.Unlock()
	b.signalFreed()
}

func (b *sessionBucket) signalFreed() {
	select {
	case b.freed <- struct{}{}:
	default:
	}
}

func optionsKey(opt Options) string {
	return fmt.Sprintf("multipv=%d|elo=%d", opt.BestLines, opt.MaxElo)
}

func defaultPerOptionsCapacity() int {
	cpu := runtime.NumCPU()
	if cpu < 2 {
		return 2
	}
	if cpu > 4 {
		return 4
	}
	return cpu
}
