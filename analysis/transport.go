package analysis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Transport opens the byte stream of one analysis request. Closing the
// returned body, or cancelling ctx, aborts the request.
type Transport interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPTransport is the Transport used against the real backend.
type HTTPTransport struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPTransport builds a transport whose only deadline is the time to
// receive response headers; a slow analysis may stream for as long as it
// needs. A non-positive headerTimeout disables that deadline too.
func NewHTTPTransport(headerTimeout time.Duration, verbose bool, logger *zap.Logger) *HTTPTransport {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	if headerTimeout > 0 {
		base.ResponseHeaderTimeout = headerTimeout
	}

	var rt http.RoundTripper = base
	if verbose {
		rt = &loggingTransport{next: base, logger: logger}
	}

	return &HTTPTransport{
		client: &http.Client{Transport: rt},
		logger: logger,
	}
}

// NewHTTPTransportWithClient wraps an existing client, e.g. an httptest one.
func NewHTTPTransportWithClient(client *http.Client, logger *zap.Logger) *HTTPTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPTransport{client: client, logger: logger}
}

func (t *HTTPTransport) Open(ctx context.Context, streamURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, &TransportError{URL: streamURL, Err: err}
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: streamURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &TransportError{
			URL:        streamURL,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	return resp.Body, nil
}

// StreamURL builds the request URL for q against the analysis base URL.
func StreamURL(base, streamPath string, q Query) (string, error) {
	joined, err := urlJoin(base, streamPath)
	if err != nil {
		return "", fmt.Errorf("invalid analysis URL %q: %w", base, err)
	}

	u, err := url.Parse(joined)
	if err != nil {
		return "", err
	}

	params := u.Query()
	params.Set("prompt", q.Prompt)
	params.Set("model", q.Model)
	u.RawQuery = params.Encode()

	return u.String(), nil
}

func urlJoin(base, rel string) (string, error) {
	baseURL, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return "", err
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return "", fmt.Errorf("base URL must be absolute")
	}

	relURL, err := url.Parse(rel)
	if err != nil {
		return "", err
	}

	if relURL.Scheme != "" && relURL.Host != "" {
		return rel, nil
	}

	joinedPath := path.Join("/", baseURL.Path, relURL.Path)

	result := &url.URL{
		Scheme: baseURL.Scheme,
		User:   baseURL.User,
		Host:   baseURL.Host,
		Path:   joinedPath,
	}

	return result.String(), nil
}

// loggingTransport logs request lines and response headers. Bodies are
// left untouched because they are consumed incrementally.
type loggingTransport struct {
	next   http.RoundTripper
	logger *zap.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.logger.Debug(">>> request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Any("headers", req.Header),
	)

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.Debug("<<< transport error", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	t.logger.Debug("<<< response",
		zap.String("status", resp.Status),
		zap.String("proto", resp.Proto),
		zap.Any("headers", resp.Header),
		zap.Duration("ttfb", time.Since(start)),
	)
	return resp, nil
}
