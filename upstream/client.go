// Package upstream is the HTTP JSON client for the deals backend. It
// implements dealscache.Upstream and performs no caching or retries.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/dealscache"
)

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// StatusError is a non-2xx answer other than 404.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream: status %d", e.Code)
	}
	return fmt.Sprintf("upstream: status %d: %s", e.Code, e.Body)
}

type Options struct {
	HTTPClient *http.Client // nil => &http.Client{Timeout: Timeout}
	Timeout    time.Duration
	UserAgent  string
}

type Client struct {
	base *url.URL
	hc   *http.Client
	ua   string
}

var _ dealscache.Upstream = (*Client)(nil)

func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("upstream: base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream: base url %q must be http(s)", baseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "dealscache"
	}
	return &Client{base: u, hc: hc, ua: ua}, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]dealscache.Deal, error) {
	var out []dealscache.Deal
	err := c.get(ctx, "/search", url.Values{"q": {query}}, &out)
	return out, err
}

func (c *Client) Popular(ctx context.Context, limit int) ([]dealscache.Deal, error) {
	var out []dealscache.Deal
	err := c.get(ctx, "/popular", url.Values{"limit": {strconv.Itoa(limit)}}, &out)
	return out, err
}

func (c *Client) Health(ctx context.Context) (dealscache.HealthStatus, error) {
	var out dealscache.HealthStatus
	err := c.get(ctx, "/health", nil, &out)
	return out, err
}

// PriceHistory fills the summary fields when the backend leaves them out.
func (c *Client) PriceHistory(ctx context.Context, q dealscache.HistoryQuery) (dealscache.PriceHistory, error) {
	params := url.Values{
		"product": {q.Product},
		"days":    {strconv.Itoa(q.PeriodDays)},
	}
	if q.Platform != "" {
		params.Set("platform", q.Platform)
	}
	var out dealscache.PriceHistory
	if err := c.get(ctx, "/history", params, &out); err != nil {
		return dealscache.PriceHistory{}, err
	}
	if out.Lowest == 0 && out.Highest == 0 && len(out.Points) > 0 {
		out.Summarize()
	}
	if out.PeriodDays == 0 {
		out.PeriodDays = q.PeriodDays
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := *c.base
	u.Path += path
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.ua)
	if id := RequestID(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("upstream: GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	body := io.LimitReader(resp.Body, maxBody)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("upstream: GET %s: %w", path, dealscache.ErrEmptyResult)
	case resp.StatusCode == http.StatusNoContent:
		return fmt.Errorf("upstream: GET %s: %w", path, dealscache.ErrEmptyResult)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(body, 256))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("upstream: GET %s: %w", path, dealscache.ErrEmptyResult)
		}
		return fmt.Errorf("upstream: GET %s: decode: %w", path, err)
	}
	return nil
}
