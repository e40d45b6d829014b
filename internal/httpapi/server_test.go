package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chess-uci/internal/analysis"
	"github.com/park285/chess-uci/internal/uci"
	"github.com/park285/chess-uci/pkg/analysisdto"
)

type stubAnalyzer struct {
	lastReq analysis.Request
	report  *analysis.Report
	err     error
}

func (s *stubAnalyzer) Analyze(_ context.Context, req analysis.Request) (*analysis.Report, error) {
	s.lastReq = req
	return s.report, s.err
}

func (s *stubAnalyzer) Lookup(_ context.Context, id string) (*analysis.Report, error) {
	if s.report != nil && s.report.ID == id {
		return s.report, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, analysis.ErrReportNotFound
}

func sampleReport() *analysis.Report {
	return &analysis.Report{
		ID:         "2f1c5a4e-8c1d-4c55-9d8f-3f5b4c2a1e00",
		Moves:      []string{"e2e4"},
		Lines:      1,
		MoveTime:   500 * time.Millisecond,
		Engine:     "Fake engine",
		Evaluation: uci.Exact(-35),
		TopLines: []analysis.Line{
			{Moves: []string{"c7c5"}, SAN: []string{"c5"}, Evaluation: uci.Exact(-35)},
		},
	}
}

func do(s *Server, method, uri, body string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	s.Handler(&ctx)
	return &ctx
}

func TestHandleAnalyzeCreated(t *testing.T) {
	stub := &stubAnalyzer{report: sampleReport()}
	s := NewServer(stub, zap.NewNop())

	ctx := do(s, fasthttp.MethodPost, "/v1/analyses", `{"moves":["e2e4"],"lines":1,"movetime_ms":500}`)
	if ctx.Response.StatusCode() != fasthttp.StatusCreated {
		t.Fatalf("status = %d body=%s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	if stub.lastReq.MoveTime != 500*time.Millisecond || stub.lastReq.Lines != 1 || len(stub.lastReq.Moves) != 1 {
		t.Fatalf("request passed to service = %+v", stub.lastReq)
	}
	if loc := string(ctx.Response.Header.Peek("Location")); loc != "/v1/analyses/"+stub.report.ID {
		t.Fatalf("Location = %q", loc)
	}

	var out analysisdto.AnalysisResponse
	if err := json.Unmarshal(ctx.Response.Body(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Display != "-0.35" || string(out.Evaluation) != `{"cp":-35}` {
		t.Fatalf("evaluation = %s (%s)", out.Evaluation, out.Display)
	}
	if len(out.Lines) != 1 || out.Lines[0].SAN[0] != "c5" {
		t.Fatalf("lines = %+v", out.Lines)
	}
	if out.MoveTimeMS != 500 {
		t.Fatalf("MoveTimeMS = %d", out.MoveTimeMS)
	}
}

func TestHandleAnalyzeCachedIsOK(t *testing.T) {
	report := sampleReport()
	report.Cached = true
	s := NewServer(&stubAnalyzer{report: report}, zap.NewNop())
	ctx := do(s, fasthttp.MethodPost, "/v1/analyses", `{}`)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
}

func TestHandleAnalyzeErrors(t *testing.T) {
	cases := []struct {
		err       error
		status    int
		code      string
		retryable bool
	}{
		{fmt.Errorf("%w: bad fen", analysis.ErrInvalidRequest), fasthttp.StatusBadRequest, "invalid_request", false},
		{&uci.ProtocolError{Command: "go", Expected: "bestmove"}, fasthttp.StatusBadGateway, "engine_error", true},
		{fmt.Errorf("stop search: %w", &uci.ParseError{Field: "score"}), fasthttp.StatusBadGateway, "engine_error", true},
		{context.DeadlineExceeded, fasthttp.StatusGatewayTimeout, "timeout", true},
		{uci.ErrPoolClosed, fasthttp.StatusServiceUnavailable, "unavailable", true},
		{errors.New("boom"), fasthttp.StatusInternalServerError, "internal", false},
	}
	for _, tc := range cases {
		s := NewServer(&stubAnalyzer{err: tc.err}, zap.NewNop())
		ctx := do(s, fasthttp.MethodPost, "/v1/analyses", `{}`)
		if ctx.Response.StatusCode() != tc.status {
			t.Fatalf("%v: status = %d, want %d", tc.err, ctx.Response.StatusCode(), tc.status)
		}
		var out analysisdto.ErrorResponse
		if err := json.Unmarshal(ctx.Response.Body(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out.Code != tc.code || out.Retryable != tc.retryable {
			t.Fatalf("%v: body = %+v", tc.err, out)
		}
	}
}

func TestHandleAnalyzeMalformedJSON(t *testing.T) {
	s := NewServer(&stubAnalyzer{}, zap.NewNop())
	ctx := do(s, fasthttp.MethodPost, "/v1/analyses", `{"moves":`)
	if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
}

func TestHandleGet(t *testing.T) {
	stub := &stubAnalyzer{report: sampleReport()}
	s := NewServer(stub, zap.NewNop())

	ctx := do(s, fasthttp.MethodGet, "/v1/analyses/"+stub.report.ID, "")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	ctx = do(s, fasthttp.MethodGet, "/v1/analyses/unknown", "")
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("status for unknown id = %d", ctx.Response.StatusCode())
	}
}

func TestRouting(t *testing.T) {
	s := NewServer(&stubAnalyzer{}, zap.NewNop())

	ctx := do(s, fasthttp.MethodGet, "/healthz", "")
	if ctx.Response.StatusCode() != fasthttp.StatusOK || string(ctx.Response.Body()) != `{"status":"ok"}` {
		t.Fatalf("healthz = %d %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	if ctx := do(s, fasthttp.MethodGet, "/v1/analyses", ""); ctx.Response.StatusCode() != fasthttp.StatusMethodNotAllowed {
		t.Fatalf("GET collection = %d", ctx.Response.StatusCode())
	}
	if ctx := do(s, fasthttp.MethodDelete, "/v1/analyses/x", ""); ctx.Response.StatusCode() != fasthttp.StatusMethodNotAllowed {
		t.Fatalf("DELETE item = %d", ctx.Response.StatusCode())
	}
	if ctx := do(s, fasthttp.MethodGet, "/nope", ""); ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("unknown route = %d", ctx.Response.StatusCode())
	}
}
