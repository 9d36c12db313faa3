package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultOptionTTL bounds how long selector lists are reused.
const DefaultOptionTTL = 10 * time.Minute

type Config struct {
	// APIURL serves option lists and reports.
	APIURL string
	// AnalysisURL serves the AI commentary. Empty disables it.
	AnalysisURL string
	Timeout     time.Duration
	OptionTTL   time.Duration
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// Client reads the ELISA dashboard API. It is safe for concurrent use.
type Client struct {
	apiURL      string
	analysisURL string
	http        *http.Client
	options     *cache.Cache
	logger      *zap.Logger
}

// APIError is a non-2xx answer from a dashboard endpoint.
type APIError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("failed to fetch %s: status %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("failed to fetch %s: status %d", e.URL, e.StatusCode)
}

func New(cfg Config) (*Client, error) {
	if err := checkBase(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", cfg.APIURL, err)
	}
	if cfg.AnalysisURL != "" {
		if err := checkBase(cfg.AnalysisURL); err != nil {
			return nil, fmt.Errorf("invalid analysis url %q: %w", cfg.AnalysisURL, err)
		}
	}
	if cfg.OptionTTL <= 0 {
		cfg.OptionTTL = DefaultOptionTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		apiURL:      strings.TrimSuffix(cfg.APIURL, "/"),
		analysisURL: strings.TrimSuffix(cfg.AnalysisURL, "/"),
		http:        client,
		options:     cache.New(cfg.OptionTTL, 2*cfg.OptionTTL),
		logger:      cfg.Logger,
	}, nil
}

func checkBase(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}

// Faculties lists the faculty selector.
func (c *Client) Faculties(ctx context.Context) ([]Option, error) {
	return c.optionList(ctx, "fakultas", "/api/get-fakultas", nil)
}

// Buildings lists the buildings of faculty. Without a faculty there is
// nothing to list.
func (c *Client) Buildings(ctx context.Context, faculty string) ([]Option, error) {
	faculty = normalize(faculty)
	if faculty == "" {
		return nil, nil
	}
	return c.optionList(ctx, "gedung", "/api/get-gedung", map[string]string{"fakultas": faculty})
}

// Floors lists the floors of a building. Both faculty and building are required.
func (c *Client) Floors(ctx context.Context, faculty, building string) ([]Option, error) {
	faculty, building = normalize(faculty), normalize(building)
	if faculty == "" || building == "" {
		return nil, nil
	}
	return c.optionList(ctx, "lantai", "/api/get-lantai", map[string]string{
		"fakultas": faculty,
		"gedung":   building,
	})
}

// InvalidateOptions drops every cached selector list.
func (c *Client) InvalidateOptions() {
	c.options.Flush()
}

func (c *Client) optionList(ctx context.Context, key, path string, params map[string]string) ([]Option, error) {
	cacheKey := key + "?" + encodeParams(params)
	if v, ok := c.options.Get(cacheKey); ok {
		return slices.Clone(v.([]Option)), nil
	}

	var payload map[string][]Option
	if err := c.getJSON(ctx, c.apiURL, path, params, &payload); err != nil {
		return nil, err
	}
	opts := payload[key]
	if opts == nil {
		opts = []Option{}
	}
	c.options.Set(cacheKey, opts, cache.DefaultExpiration)
	return slices.Clone(opts), nil
}

// Daily fetches the per-day report for date (YYYY-MM-DD).
func (c *Client) Daily(ctx context.Context, date string, f Filter) (*Report[DailyReport], error) {
	params := f.params()
	params["date"] = date
	return fetchReport[DailyReport](ctx, c, "/api/daily", "daily", params)
}

// Monthly fetches the per-month report for month (YYYY-MM).
func (c *Client) Monthly(ctx context.Context, month string, f Filter) (*Report[MonthlyReport], error) {
	params := f.params()
	params["date"] = month
	return fetchReport[MonthlyReport](ctx, c, "/api/monthly", "monthly", params)
}

// Now fetches today's live power report.
func (c *Client) Now(ctx context.Context, date string, f Filter) (*Report[NowReport], error) {
	params := f.params()
	params["date"] = date
	return fetchReport[NowReport](ctx, c, "/api/now", "now", params)
}

// Heatmap fetches weekday by hour usage between start and end.
func (c *Client) Heatmap(ctx context.Context, start, end string, f Filter) (*Report[HeatmapReport], error) {
	params := f.params()
	params["start"] = start
	params["end"] = end
	return fetchReport[HeatmapReport](ctx, c, "/api/heatmap", "heatmap", params)
}

// Compare fetches the faculty comparison for month (YYYY-MM).
func (c *Client) Compare(ctx context.Context, month string) (*Report[CompareReport], error) {
	return fetchReport[CompareReport](ctx, c, "/api/compare", "faculty", map[string]string{"date": month})
}

// fetchReport loads a report and its commentary concurrently. Only the
// report decides success.
func fetchReport[T any](ctx context.Context, c *Client, path, kind string, params map[string]string) (*Report[T], error) {
	var rep Report[T]

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.getJSON(gctx, c.apiURL, path, params, &rep.Data)
	})
	if c.analysisURL != "" {
		g.Go(func() error {
			text, err := c.analysis(gctx, kind, params)
			if err != nil {
				if gctx.Err() == nil {
					c.logger.Warn("analysis unavailable", zap.String("kind", kind), zap.Error(err))
				}
				return nil
			}
			rep.Analysis = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (c *Client) analysis(ctx context.Context, kind string, params map[string]string) (string, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, c.analysisURL, "/api/analysis/"+kind, params, &raw); err != nil {
		return "", err
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *Client) getJSON(ctx context.Context, base, path string, params map[string]string, out any) error {
	u := base + path
	if len(params) > 0 {
		u += "?" + encodeParams(params)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("dashboard request",
		zap.String("url", u),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{URL: u, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// encodeParams keeps empty values so the backend sees every filter key.
func encodeParams(params map[string]string) string {
	v := url.Values{}
	for k, val := range params {
		v.Set(k, val)
	}
	return v.Encode()
}
