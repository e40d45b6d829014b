package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/chess-uci/pkg/analysisdto"
)

// Client calls a remote analysis server.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type ClientOption func(*Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) ClientOption {
	return func(c *Client) { c.retryMax = max }
}

// WithDial replaces the network dialer, e.g. with an in-memory listener.
func WithDial(dial fasthttp.DialFunc) ClientOption {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 2 * time.Minute, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 2 * time.Minute,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Analyze(ctx context.Context, in analysisdto.AnalyzeRequest) (*analysisdto.AnalysisResponse, error) {
	var out analysisdto.AnalysisResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, pathAnalyses, in, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Report(ctx context.Context, id string) (*analysisdto.AnalysisResponse, error) {
	var out analysisdto.AnalysisResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, pathAnalyses+"/"+url.PathEscape(id), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 0 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			lastErr = decodeError(status, resp.Body())
			if !shouldRetryStatus(status) {
				return lastErr
			}
		} else {
			if out != nil {
				if err := json.Unmarshal(resp.Body(), out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
			}
			return nil
		}

		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

// StatusError is a non-2xx reply from the server.
type StatusError struct {
	Status int
	Body   analysisdto.ErrorResponse
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analysis api error: status=%d code=%s: %s", e.Status, e.Body.Code, e.Body.Error())
}

func decodeError(status int, body []byte) error {
	serr := &StatusError{Status: status}
	if err := json.Unmarshal(body, &serr.Body); err != nil {
		serr.Body.Message = truncate(string(body), 512)
	}
	return serr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case fasthttp.StatusBadGateway, fasthttp.StatusServiceUnavailable, fasthttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
