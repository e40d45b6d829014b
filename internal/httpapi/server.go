// Package httpapi exposes the analysis service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chess-uci/internal/analysis"
	"github.com/park285/chess-uci/internal/uci"
	"github.com/park285/chess-uci/pkg/analysisdto"
)

// Analyzer is the part of analysis.Service the handlers use.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Report, error)
	Lookup(ctx context.Context, id string) (*analysis.Report, error)
}

const (
	pathAnalyses = "/v1/analyses"
	pathHealth   = "/healthz"

	defaultRequestTimeout = 60 * time.Second
	maxBodySize           = 64 << 10
)

type Server struct {
	svc            Analyzer
	logger         *zap.Logger
	requestTimeout time.Duration
	srv            *fasthttp.Server
}

type Option func(*Server)

func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

func NewServer(svc Analyzer, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:            svc,
		logger:         logger,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = &fasthttp.Server{
		Handler:            s.Handler,
		Name:               "chess-uci",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       s.requestTimeout + 10*time.Second,
		MaxRequestBodySize: maxBodySize,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

// Handler routes a request. It is exported for tests and embedding.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	path := string(ctx.Path())

	switch {
	case path == pathHealth:
		s.writeJSON(ctx, fasthttp.StatusOK, analysisdto.HealthResponse{Status: "ok"})
	case path == pathAnalyses:
		if !ctx.IsPost() {
			ctx.Response.Header.Set("Allow", fasthttp.MethodPost)
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "method_not_allowed", "use POST", false)
			break
		}
		s.handleAnalyze(ctx)
	case strings.HasPrefix(path, pathAnalyses+"/"):
		if !ctx.IsGet() {
			ctx.Response.Header.Set("Allow", fasthttp.MethodGet)
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "method_not_allowed", "use GET", false)
			break
		}
		s.handleGet(ctx, strings.TrimPrefix(path, pathAnalyses+"/"))
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, "not_found", "no such route", false)
	}

	s.logger.Debug("http request",
		zap.ByteString("method", ctx.Method()),
		zap.String("path", path),
		zap.Int("status", ctx.Response.StatusCode()),
		zap.Duration("took", time.Since(start)))
}

func (s *Server) handleAnalyze(ctx *fasthttp.RequestCtx) {
	var in analysisdto.AnalyzeRequest
	if err := json.Unmarshal(ctx.PostBody(), &in); err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, "invalid_request", "malformed json: "+err.Error(), false)
		return
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
	defer cancel()

	report, err := s.svc.Analyze(reqCtx, analysis.Request{
		FEN:      in.FEN,
		Moves:    in.Moves,
		SAN:      in.SAN,
		Lines:    in.Lines,
		MaxElo:   in.MaxElo,
		MoveTime: time.Duration(in.MoveTimeMS) * time.Millisecond,
	})
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	status := fasthttp.StatusCreated
	if report.Cached {
		status = fasthttp.StatusOK
	}
	ctx.Response.Header.Set("Location", pathAnalyses+"/"+report.ID)
	s.writeJSON(ctx, status, toResponse(report))
}

func (s *Server) handleGet(ctx *fasthttp.RequestCtx, id string) {
	reqCtx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
	defer cancel()

	report, err := s.svc.Lookup(reqCtx, id)
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, toResponse(report))
}

func (s *Server) writeServiceError(ctx *fasthttp.RequestCtx, err error) {
	var (
		perr *uci.ProtocolError
		xerr *uci.ParseError
	)
	switch {
	case errors.Is(err, analysis.ErrInvalidRequest):
		s.writeError(ctx, fasthttp.StatusBadRequest, "invalid_request", err.Error(), false)
	case errors.Is(err, analysis.ErrReportNotFound):
		s.writeError(ctx, fasthttp.StatusNotFound, "not_found", err.Error(), false)
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(ctx, fasthttp.StatusGatewayTimeout, "timeout", err.Error(), true)
	case errors.Is(err, uci.ErrPoolClosed):
		s.writeError(ctx, fasthttp.StatusServiceUnavailable, "unavailable", err.Error(), true)
	case errors.As(err, &perr), errors.As(err, &xerr), errors.Is(err, uci.ErrIncompleteInfo), errors.Is(err, uci.ErrSessionClosed):
		s.logger.Warn("engine failure", zap.Error(err))
		s.writeError(ctx, fasthttp.StatusBadGateway, "engine_error", err.Error(), true)
	default:
		s.logger.Error("analysis failed", zap.Error(err))
		s.writeError(ctx, fasthttp.StatusInternalServerError, "internal", "internal error", false)
	}
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, status int, code, msg string, retryable bool) {
	s.writeJSON(ctx, status, analysisdto.ErrorResponse{Code: code, Message: msg, Retryable: retryable})
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode response", zap.Error(err))
		ctx.Error("internal error", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func toResponse(r *analysis.Report) analysisdto.AnalysisResponse {
	out := analysisdto.AnalysisResponse{
		ID:           r.ID,
		FEN:          r.FEN,
		Moves:        r.Moves,
		Evaluation:   marshalEvaluation(r.Evaluation),
		Display:      r.Evaluation.String(),
		Engine:       r.Engine,
		OpeningCode:  r.OpeningCode,
		OpeningTitle: r.OpeningTitle,
		MoveTimeMS:   r.MoveTime.Milliseconds(),
		DurationMS:   r.Duration.Milliseconds(),
		Cached:       r.Cached,
		CreatedAt:    r.CreatedAt,
		Lines:        make([]analysisdto.LineDTO, 0, len(r.TopLines)),
	}
	if out.Moves == nil {
		out.Moves = []string{}
	}
	for _, l := range r.TopLines {
		out.Lines = append(out.Lines, analysisdto.LineDTO{
			Moves:      l.Moves,
			SAN:        l.SAN,
			Evaluation: marshalEvaluation(l.Evaluation),
			Display:    l.Evaluation.String(),
		})
	}
	return out
}

func marshalEvaluation(ev uci.Evaluation) json.RawMessage {
	raw, err := json.Marshal(ev)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}
